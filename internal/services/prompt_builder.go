package services

import (
	"fmt"
	"strings"

	domain "github.com/hanko-field/namegen/internal/domain"
)

const promptTemplate = `Create %d Chinese names for the English name "%s". Requirements:
1. Each name has 2-3 Chinese characters
2. Each name carries an auspicious meaning
3. The name sounds harmonious and echoes the original pronunciation
4. The name suits a foreigner

Reply strictly in this JSON format:
{
  "names": [
    {
      "chineseName": "Chinese characters",
      "pinyin": "pinyin with tone marks",
      "chineseMeaning": "meaning written in Chinese",
      "englishMeaning": "meaning written in English"
    }
  ]
}

Return only the JSON object and nothing else.`

// BuildPrompt renders the model instruction for a validated name.
func BuildPrompt(candidate domain.NameCandidate) string {
	name := strings.ReplaceAll(candidate.String(), `"`, "")
	return fmt.Sprintf(promptTemplate, domain.SuggestionCount, name)
}
