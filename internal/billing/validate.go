package billing

import (
	"fmt"
	"strings"
)

// ValidateDocument checks the field constraints required before a save or a
// lock. It reports every problem at once, each naming the offending line,
// so a surface can highlight them all in a single pass.
func ValidateDocument(doc *Document) error {
	var problems []string
	if doc.IssueDate.IsZero() {
		problems = append(problems, "issue date is required")
	}
	for i, item := range doc.Items {
		line := i + 1
		if strings.TrimSpace(item.Description) == "" {
			problems = append(problems, fmt.Sprintf("description is required on line %d", line))
		}
		if item.Kind == LineFreeText {
			continue
		}
		if item.Quantity <= 0 {
			problems = append(problems, fmt.Sprintf("quantity must be positive on line %d", line))
		}
		if item.UnitPrice < 0 {
			problems = append(problems, fmt.Sprintf("unit price must not be negative on line %d", line))
		}
	}
	if len(problems) > 0 {
		return NewError(KindValidationFailed, strings.Join(problems, "; "))
	}
	return nil
}
