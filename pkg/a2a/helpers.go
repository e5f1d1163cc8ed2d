package a2a

import "strings"

// ============================================================================
// MESSAGE HELPERS
// ============================================================================

// ExtractText concatenates all text parts of a message.
func ExtractText(msg *Message) string {
	if msg == nil {
		return ""
	}

	var texts []string
	for _, part := range msg.Parts {
		if part.Kind == PartKindText && part.Text != "" {
			texts = append(texts, part.Text)
		}
	}
	return strings.Join(texts, "\n")
}

// ExtractTaskText extracts all text carried by a task: the status message
// plus agent-authored history and artifact text parts.
func ExtractTaskText(task *Task) string {
	if task == nil {
		return ""
	}

	var texts []string
	appendText := func(s string) {
		if s != "" {
			texts = append(texts, s)
		}
	}

	for _, msg := range task.History {
		if msg.Role == RoleAgent {
			appendText(ExtractText(&msg))
		}
	}
	for _, artifact := range task.Artifacts {
		appendText(extractPartsText(artifact.Parts))
	}
	if len(texts) == 0 {
		appendText(ExtractText(task.Status.Message))
	}

	return strings.Join(texts, "\n")
}

// ExtractResultText extracts the text of a send result union.
func ExtractResultText(res *SendResult) string {
	if res == nil {
		return ""
	}
	if res.Message != nil {
		return ExtractText(res.Message)
	}
	return ExtractTaskText(res.Task)
}

// FileParts collects all file parts from a task's artifacts.
func FileParts(task *Task) []FilePart {
	if task == nil {
		return nil
	}

	var files []FilePart
	for _, artifact := range task.Artifacts {
		for _, part := range artifact.Parts {
			if part.Kind == PartKindFile && part.File != nil {
				files = append(files, *part.File)
			}
		}
	}
	return files
}

func extractPartsText(parts []Part) string {
	var texts []string
	for _, part := range parts {
		if part.Kind == PartKindText && part.Text != "" {
			texts = append(texts, part.Text)
		}
	}
	return strings.Join(texts, "\n")
}
