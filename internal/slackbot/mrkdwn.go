package slackbot

import "regexp"

type rewrite struct {
	pattern     *regexp.Regexp
	replacement string
}

// Applied in order: italic runs first so that a bold "**x**" is first turned
// into "__x__" and then caught by the bold rule.
var markdownRewrites = []rewrite{
	{regexp.MustCompile(`[*_]([^*_]*?)[*_]`), "_${1}_"},           // italic
	{regexp.MustCompile(`~{2}(.*?)~{2}`), "~${1}~"},               // strikethrough
	{regexp.MustCompile(`[*_]{2}([^*_]*?)[*_]{2}`), "*${1}*"},     // bold
	{regexp.MustCompile(`(?s)\[(.*?)\]\((.*?)\)`), "<${2}|${1}>"}, // link
	{regexp.MustCompile(`(?m)^#{1,6}\s+(.*?)$`), "*${1}*"},        // heading
}

// MarkdownToMrkdwn converts the model's Markdown into Slack's mrkdwn dialect.
func MarkdownToMrkdwn(text string) string {
	for _, r := range markdownRewrites {
		text = r.pattern.ReplaceAllString(text, r.replacement)
	}
	return text
}
