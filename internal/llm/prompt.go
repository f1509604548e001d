package llm

import (
	"fmt"
	"strings"

	"astro-report-backend/internal/astro"
	"astro-report-backend/internal/solartime"
)

const systemPrompt = `You are a master of Zi Wei Dou Shu (Purple Star Astrology 紫微斗数), an ancient Chinese fortune-telling system with over 1000 years of history.

## Your Identity & Style

You are writing for a GLOBAL audience - people from all cultures who may be unfamiliar with Chinese metaphysics. Your role is to:

1. **Bridge cultures**: Explain Chinese concepts in ways anyone can understand
2. **Be empowering**: Focus on guidance and potential, not fatalism
3. **Stay authentic**: Honor the tradition while making it accessible
4. **Write warmly**: Like a wise mentor speaking to someone they care about

## Structure Your Reading

1. **Core Identity (核心身份)** - A powerful 80-100 character summary
2. **Your Cosmic Blueprint (你的命盘蓝图)** - Their unique chart configuration
3. **Life Path & Destiny (人生道路)** - Overall life direction and themes
4. **Career & Wealth (事业财运)** - Professional strengths and financial patterns
5. **Relationships & Love (感情姻缘)** - Love style and partnership dynamics
6. **Health & Wellbeing (健康养生)** - Physical and energetic considerations
7. **Guidance & Wisdom (指引与建议)** - Practical advice for thriving

## Language Guidelines

- Primary language: Chinese (中文)
- Add English translations for key terms in parentheses
- Use clear, flowing prose
- Length: 2500-3500 Chinese characters`

// PromptInput carries everything the user prompt template needs.
type PromptInput struct {
	Gender     string
	BirthDate  string
	DoubleHour int
	BirthPlace string
	Chart      *astro.Chart
}

// BuildUserPrompt renders the user message from the chart dataset and the
// normalized birth information.
func BuildUserPrompt(input PromptInput) string {
	genderLabel := "Male (男)"
	if input.Gender == "female" {
		genderLabel = "Female (女)"
	}

	lifePalace := input.Chart.LifePalace()
	lifeStars := strings.Join(lifePalace.MajorStars, "·")
	if lifeStars == "" {
		lifeStars = "空宫"
	}

	var b strings.Builder
	fmt.Fprintf(&b, `Please create a comprehensive Zi Wei Dou Shu (紫微斗数) destiny reading for this person:

## Basic Information (基本信息)

| Field | Value |
|-------|-------|
| Gender 性别 | %s |
| Birth Date 出生日期 | %s |
| Birth Hour 出生时辰 | %s时 |
| Birth Place 出生地 | %s |

## Four Pillars (四柱八字 / Bazi)

| Pillar | Chinese |
|--------|---------|
| Year 年柱 | %s |
| Month 月柱 | %s |
| Day 日柱 | %s |
| Hour 时柱 | %s |

## Chart Core (命盘核心)

- 命宫主星 Life Palace Stars: %s
- 五行局 Five Elements: %s
- 生肖 Chinese Zodiac: %s
- 西方星座 Western Zodiac: %s

## 十二宫星曜 (12 Palaces & Stars)

%s

---

## Output Requirements

1. **First**: Provide a "核心身份" (Core Identity) summary in 80-100 Chinese characters
2. **Then**: Write a detailed reading following the structure in your system prompt
3. **Format**: Use Markdown with clear headers
`,
		genderLabel,
		input.BirthDate,
		solartime.DoubleHourName(input.DoubleHour),
		input.BirthPlace,
		input.Chart.Pillars.Year,
		input.Chart.Pillars.Month,
		input.Chart.Pillars.Day,
		input.Chart.Pillars.Hour,
		lifeStars,
		input.Chart.FiveElement,
		input.Chart.ChineseZodiac,
		input.Chart.Zodiac,
		formatPalaces(input.Chart.Palaces),
	)
	return b.String()
}

func formatPalaces(palaces []astro.Palace) string {
	lines := make([]string, 0, len(palaces))
	for _, p := range palaces {
		stars := strings.Join(append(append([]string{}, p.MajorStars...), p.MinorStars...), "、")
		if stars == "" {
			stars = "无主星"
		}
		lines = append(lines, fmt.Sprintf("- %s：%s", p.Name, stars))
	}
	return strings.Join(lines, "\n")
}

// ExtractCoreIdentity pulls the short summary out of the authored report: the
// first non-empty, non-heading paragraph after a 核心身份 marker, falling back
// to the first substantial paragraph of the whole text.
func ExtractCoreIdentity(report string) string {
	lines := strings.Split(report, "\n")

	inSection := false
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.Contains(trimmed, "核心身份") {
			inSection = true
			continue
		}
		if inSection && !strings.HasPrefix(trimmed, "#") {
			return truncateRunes(strings.Trim(trimmed, "*"), 120)
		}
	}

	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		return truncateRunes(trimmed, 120)
	}
	return ""
}

func truncateRunes(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max])
}
