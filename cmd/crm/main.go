package main

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"crm-cli/internal/cli"
)

// refKinds maps a ref prefix to the command group that shows it.
var refKinds = map[string]string{
	"customer": "customers",
	"offer":    "offers",
	"task":     "tasks",
}

// entityRef reports the command group for refs like "customer-12".
func entityRef(s string) (string, bool) {
	kind, id, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return "", false
	}
	group, known := refKinds[strings.ToLower(kind)]
	if !known {
		return "", false
	}
	if n, err := strconv.ParseInt(id, 10, 64); err != nil || n <= 0 {
		return "", false
	}
	return group, true
}

func rewriteDirectLookupArgs(argv []string) []string {
	// `crm customer-12` works like `crm customers show customer-12`.
	//
	// Cobra treats the first non-flag token as a subcommand, so argv is rewritten
	// before parsing. Persistent flags may come first (`crm --api-url ... offer-3`),
	// so we look for the first positional token, not just argv[1].
	if len(argv) < 2 {
		return argv
	}

	valueFlags := map[string]bool{
		"--api-url": true,
		"--format":  true,
	}
	boolFlags := map[string]bool{
		"--pretty":  true,
		"--verbose": true,
		"-v":        true,
	}

	rewrite := func(i int) []string {
		group, ok := entityRef(argv[i])
		if !ok {
			return argv
		}
		out := make([]string, 0, len(argv)+2)
		out = append(out, argv[:i]...)
		out = append(out, group, "show")
		out = append(out, argv[i:]...)
		return out
	}

	for i := 1; i < len(argv); i++ {
		a := strings.TrimSpace(argv[i])
		if a == "" {
			continue
		}
		if a == "--" {
			if i+1 < len(argv) {
				return rewrite(i + 1)
			}
			return argv
		}
		if strings.HasPrefix(a, "-") {
			if strings.Contains(a, "=") || boolFlags[a] {
				continue
			}
			if valueFlags[a] {
				i++
			}
			continue
		}
		return rewrite(i)
	}
	return argv
}

func main() {
	os.Args = rewriteDirectLookupArgs(os.Args)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := cli.NewRootCmd()
	if err := cmd.ExecuteContext(ctx); err != nil {
		stop()
		os.Exit(1)
	}
}
