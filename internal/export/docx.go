package export

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

func pandocAvailable() bool {
	_, err := exec.LookPath("pandoc")
	return err == nil
}

// convertDOCX converts the report HTML to DOCX using pandoc
func convertDOCX(ctx context.Context, html string) ([]byte, error) {
	if !pandocAvailable() {
		return nil, fmt.Errorf("%w: pandoc not installed", ErrDOCXDependencyMissing)
	}

	cmd := exec.CommandContext(ctx, "pandoc",
		"-f", "html",
		"-t", "docx",
		"--standalone",
		"-o", "-",
	)
	cmd.Stdin = strings.NewReader(html)

	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("pandoc failed: %s", string(exitErr.Stderr))
		}
		return nil, fmt.Errorf("pandoc execution failed: %w", err)
	}
	return output, nil
}
