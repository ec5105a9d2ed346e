package command

import (
	"fmt"
	"strings"

	"github.com/nfc-command/ncc/internal/nfc"
)

const exampleIdentifier = "04:69:62:e2:58:70:80"

const (
	msgStart = "Hi! Send me the tag UID in hexadecimal.\n" +
		"Example: " + exampleIdentifier + "\n" +
		"It must be exactly 7 bytes (14 hex characters)."

	msgInvalidIdentifier = "Invalid UID. It must be 7 bytes in hexadecimal.\n" +
		"Example: " + exampleIdentifier + "\n" +
		"Please try again."

	msgAskBlock = "Valid UID received.\n" +
		"Now send me block 4 in hexadecimal (16 bytes separated by spaces).\n" +
		"Example: " + nfc.DefaultBlock + "\n" +
		"Or send 0 to use the default value."

	msgInvalidBlock = "Invalid block 4. It must be 16 hexadecimal bytes separated by spaces.\n" +
		"Please try again, or send 0 to use the default value."

	msgInternal     = "Internal error while processing the data. Please check the input format."
	msgSessionError = "Session error. Please start again with /start"
	msgCancelled    = "Operation cancelled. Use /start to begin again."
	msgNothing      = "There is nothing to cancel. Use /start to begin."
	msgNoSession    = "No active session. Send /start to generate commands."
)

func unknownCommand(names []string) string {
	return "Unknown command. Available commands: " + strings.Join(names, ", ")
}

func helpText(r *Registry) string {
	var b strings.Builder
	b.WriteString("Available commands:\n")
	for _, h := range r.List() {
		fmt.Fprintf(&b, "/%s - %s\n", h.Name(), h.Description())
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// formatCommands renders a command set as one Markdown message with every
// command in monospace.
func formatCommands(set *nfc.CommandSet) string {
	lines := []string{
		"📝 *Generated commands:*",
		"*Full command (one line):*",
		"`" + set.Combined() + "`",
		"*Separate commands (easier to copy):*",
		"• Base NFC:",
		"`" + set.BaseCommand + "`",
	}
	for _, w := range set.Writes {
		lines = append(lines,
			fmt.Sprintf("Block %d:", w.Block),
			"`"+set.WriteLine(w)+"`",
		)
	}
	return strings.Join(lines, "\n")
}
