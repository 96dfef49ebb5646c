package backend

import (
	"context"
	"strings"
)

// Client groups the configured backend commands.
type Client struct {
	Deploy Command
	List   Command
	Show   Command
	Delete Command
}

// ListSlices runs the list command and returns one slice name per non-blank
// stdout line. Diagnostics on stderr are not names. Callers are expected to treat an error as "no slices".
func (c *Client) ListSlices(ctx context.Context) ([]string, error) {
	res, err := Run(ctx, c.List)
	if err != nil {
		return nil, err
	}
	if res.ExitCode != 0 {
		return nil, &ExitError{Command: c.List, Result: res}
	}

	var names []string
	for _, line := range strings.Split(res.Stdout, "\n") {
		if n := strings.TrimSpace(line); n != "" {
			names = append(names, n)
		}
	}
	return names, nil
}

// ShowSlice returns the free-form status text for name.
func (c *Client) ShowSlice(ctx context.Context, name string) (string, error) {
	if err := CheckName(name); err != nil {
		return "", err
	}
	res, err := Run(ctx, c.Show, name)
	if err != nil {
		return "", err
	}
	if res.ExitCode != 0 {
		return "", &ExitError{Command: c.Show, Result: res}
	}
	return res.Output, nil
}

// DeleteSlice runs the delete command for name. The exit status is returned
// in Result for the caller to classify.
func (c *Client) DeleteSlice(ctx context.Context, name string) (Result, error) {
	if err := CheckName(name); err != nil {
		return Result{}, err
	}
	return Run(ctx, c.Delete, name)
}
