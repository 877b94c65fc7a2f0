package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"samhq.app/sam/internal/model"
)

// FileNamer resolves a file id to its display name.
type FileNamer func(ctx context.Context, fileID string) (string, error)

// AnnotateCitations replaces each annotated span with a numbered marker and
// appends one footnote per annotation, in annotation order. Inline citations
// show the quote and the file name; generated files link under their name.
func AnnotateCitations(ctx context.Context, msg model.AssistantMessage, fileName FileNamer) string {
	if len(msg.Annotations) == 0 {
		return msg.Text
	}

	text := msg.Text
	footnotes := make([]string, 0, len(msg.Annotations))
	for i, ann := range msg.Annotations {
		text = strings.Replace(text, ann.Text, fmt.Sprintf(" [%d]", i), 1)

		name := ann.FileID
		if fileName != nil && ann.FileID != "" {
			if n, err := fileName(ctx, ann.FileID); err != nil {
				slog.WarnContext(ctx, "failed to resolve cited file", "file_id", ann.FileID, "error", err)
			} else {
				name = n
			}
		}

		switch ann.Type {
		case model.AnnotationFilePath:
			footnotes = append(footnotes, fmt.Sprintf("[%d] [%s](%s)", i, name, ann.Text))
		default:
			footnotes = append(footnotes, fmt.Sprintf("[%d] %s — %s", i, ann.Quote, name))
		}
	}

	return text + "\n\n" + strings.Join(footnotes, "\n")
}
