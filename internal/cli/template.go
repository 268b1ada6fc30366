package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/docseal/docseal/internal/generate"
	"github.com/docseal/docseal/pkg/color"
)

var templateCmd = &cobra.Command{
	Use:   "template",
	Short: "Inspect the templates heal uses for required files",
}

var templateListCmd = &cobra.Command{
	Use:   "list",
	Short: "List required files and the template that regenerates each",
	Long: `List required files and the template that regenerates each.

Templates are read from generator.templates_dir first and fall back to the
built-in set. When generator.command is set, heal runs that command instead.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := requireProject()
		if err != nil {
			return err
		}
		g := generate.NewTemplateGenerator(p)

		type row struct {
			Path     string `json:"path"`
			Template string `json:"template"`
			Source   string `json:"source,omitempty"`
			Error    string `json:"error,omitempty"`
		}
		var rows []row
		for _, rf := range p.Config.Required {
			r := row{Path: rf.Path, Template: rf.Template}
			if _, source, err := g.Lookup(rf.Template); err != nil {
				r.Error = err.Error()
			} else {
				r.Source = source
			}
			rows = append(rows, r)
		}

		if jsonOutput {
			return outputJSON(map[string]any{
				"required":  rows,
				"builtins":  generate.Builtins(),
				"generator": p.Config.Generator.Command,
			})
		}
		if len(p.Config.Generator.Command) > 0 {
			fmt.Printf("Generator command: %v\n", p.Config.Generator.Command)
		}
		for _, r := range rows {
			if r.Error != "" {
				fmt.Printf("  %s <- %s %s\n", r.Path, r.Template, color.Error(r.Error))
				continue
			}
			fmt.Printf("  %s <- %s %s\n", r.Path, r.Template, color.Dim("("+r.Source+")"))
		}
		fmt.Printf("Built-in templates: %v\n", generate.Builtins())
		return nil
	},
}

var templateShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print a template's unexpanded text",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := requireProject()
		if err != nil {
			return err
		}
		text, source, err := generate.NewTemplateGenerator(p).Lookup(args[0])
		if err != nil {
			return err
		}
		if jsonOutput {
			return outputJSON(map[string]string{"name": args[0], "source": source, "text": text})
		}
		fmt.Print(text)
		return nil
	},
}

func init() {
	templateCmd.AddCommand(templateListCmd, templateShowCmd)
	rootCmd.AddCommand(templateCmd)
}
