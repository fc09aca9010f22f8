package gemini

import (
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// createSafetySettings は、安全フィルター設定を作成します（中程度の制限）
func createSafetySettings() []*genai.SafetySetting {
	return []*genai.SafetySetting{
		{
			Category:  genai.HarmCategoryHarassment,
			Threshold: genai.HarmBlockThresholdBlockMediumAndAbove,
		},
		{
			Category:  genai.HarmCategoryHateSpeech,
			Threshold: genai.HarmBlockThresholdBlockMediumAndAbove,
		},
		{
			Category:  genai.HarmCategorySexuallyExplicit,
			Threshold: genai.HarmBlockThresholdBlockMediumAndAbove,
		},
		{
			Category:  genai.HarmCategoryDangerousContent,
			Threshold: genai.HarmBlockThresholdBlockMediumAndAbove,
		},
	}
}

// formatSafetyRatings は、ログ出力用にSafetyRatingsを整形します
func formatSafetyRatings(ratings []*genai.SafetyRating) string {
	var details []string
	for _, rating := range ratings {
		if rating != nil {
			details = append(details, fmt.Sprintf("%s=%s", rating.Category, rating.Probability))
		}
	}

	if len(details) == 0 {
		return "詳細情報なし"
	}

	return strings.Join(details, ",")
}
