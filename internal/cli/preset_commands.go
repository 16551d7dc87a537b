package cli

import (
	"flag"
	"fmt"
	"strings"

	"videostove/internal/preset"
)

func runPresets(args []string) error {
	fs := flag.NewFlagSet("presets", flag.ContinueOnError)
	root := fs.String("root", "work", "workspace root holding the assets tree")
	show := fs.String("show", "", "resolve one preset reference and print it")
	jsonOut := fs.Bool("json", false, "print JSON output")
	fs.SetOutput(flag.CommandLine.Output())
	if err := fs.Parse(args); err != nil {
		return err
	}

	searchPaths := preset.SearchPaths(*root)
	if len(searchPaths) == 0 {
		return fmt.Errorf("no preset directories under %s (expected %s/assets/presets); run pull --shared-only first", *root, *root)
	}

	if strings.TrimSpace(*show) != "" {
		p, err := preset.Resolve(strings.TrimSpace(*show), searchPaths)
		if err != nil {
			return err
		}
		if *jsonOut {
			return printJSON(p)
		}
		fmt.Printf("name: %s\n", p.Name)
		fmt.Printf("path: %s\n", p.Path)
		fmt.Printf("mode: %s\n", p.Mode)
		if issues := preset.Validate(p.Raw); len(issues) > 0 {
			fmt.Println("issues:")
			for _, issue := range issues {
				fmt.Println("  - " + issue)
			}
		} else {
			fmt.Println("issues: none")
		}
		return nil
	}

	entries := preset.Find(searchPaths)
	if len(entries) == 0 {
		return fmt.Errorf("no presets found under %s", strings.Join(searchPaths, ", "))
	}
	if *jsonOut {
		return printJSON(entries)
	}
	for _, e := range entries {
		line := fmt.Sprintf("%-28s %-12s %s", e.Name, e.Mode, e.Path)
		if len(e.Issues) > 0 {
			line += fmt.Sprintf("  (%d issue(s))", len(e.Issues))
		}
		fmt.Println(line)
	}
	return nil
}
