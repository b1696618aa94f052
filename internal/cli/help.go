package cli

import (
	"fmt"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/charmbracelet/lipgloss"
)

// Custom help styles
var (
	helpTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#A40000")).
			MarginBottom(1)

	helpDescStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FFA500")).
			Italic(true).
			MarginBottom(1)

	helpSectionStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("#FFA500")).
				MarginTop(1)

	helpFlagStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00AA00")).
			Bold(true)

	helpArgStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#00AAAA")).
			Bold(true)

	helpDefaultStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#888888")).
				Italic(true)
)

// StyledHelpPrinter renders kong help with Lipgloss styling. At the root it
// lists the commands; for a selected command it lists that command's
// arguments and flags followed by the global flags.
func StyledHelpPrinter(options kong.HelpOptions) func(options kong.HelpOptions, ctx *kong.Context) error {
	return func(options kong.HelpOptions, ctx *kong.Context) error {
		var sb strings.Builder

		sb.WriteString(helpTitleStyle.Render("Livetake 🎧"))
		sb.WriteString("\n")
		sb.WriteString(helpDescStyle.Render("Turn studio voice clips into believable live takes"))
		sb.WriteString("\n")

		node := ctx.Selected()
		if node == nil {
			node = ctx.Model.Node
		}

		sb.WriteString(helpSectionStyle.Render("Usage:"))
		sb.WriteString("\n  ")
		sb.WriteString(usage(ctx, node))
		sb.WriteString("\n")
		if node != ctx.Model.Node && node.Help != "" {
			sb.WriteString("\n  ")
			sb.WriteString(node.Help)
			sb.WriteString("\n")
		}

		if cmds := getCommands(node); len(cmds) > 0 {
			writeItems(&sb, "Commands:", helpArgStyle, cmds)
		}
		if args := getArguments(node); len(args) > 0 {
			writeItems(&sb, "Arguments:", helpArgStyle, args)
		}
		if node != ctx.Model.Node {
			if flags := getFlags(node, false); len(flags) > 0 {
				writeItems(&sb, "Flags:", helpFlagStyle, flags)
			}
		}
		writeItems(&sb, "Global Flags:", helpFlagStyle, getFlags(ctx.Model.Node, true))

		sb.WriteString("\n")
		fmt.Fprint(ctx.Stdout, sb.String())
		return nil
	}
}

type item struct {
	name       string
	help       string
	defaultVal string
}

func writeItems(sb *strings.Builder, title string, style lipgloss.Style, items []item) {
	sb.WriteString("\n")
	sb.WriteString(helpSectionStyle.Render(title))
	sb.WriteString("\n")
	for _, it := range items {
		sb.WriteString("  ")
		sb.WriteString(style.Render(it.name))
		if it.help != "" {
			sb.WriteString("  ")
			sb.WriteString(it.help)
		}
		if it.defaultVal != "" {
			sb.WriteString(" ")
			sb.WriteString(helpDefaultStyle.Render("(default: " + it.defaultVal + ")"))
		}
		sb.WriteString("\n")
	}
}

func usage(ctx *kong.Context, node *kong.Node) string {
	if node == ctx.Model.Node {
		return fmt.Sprintf("%s [flags] <command> ...", ctx.Model.Name)
	}
	parts := []string{ctx.Model.Name, node.Path(), "[flags]"}
	for _, arg := range node.Positional {
		parts = append(parts, arg.Summary())
	}
	return strings.Join(parts, " ")
}

func getCommands(node *kong.Node) []item {
	var cmds []item
	for _, child := range node.Children {
		if child.Hidden {
			continue
		}
		cmds = append(cmds, item{name: child.Name, help: child.Help})
	}
	return cmds
}

func getArguments(node *kong.Node) []item {
	var args []item
	for _, arg := range node.Positional {
		args = append(args, item{name: arg.Summary(), help: arg.Help})
	}
	return args
}

func getFlags(node *kong.Node, withHelp bool) []item {
	var flags []item
	if withHelp {
		flags = append(flags, item{name: "-h, --help", help: "Show context-sensitive help."})
	}

	for _, f := range node.Flags {
		if f.Name == "help" || f.Hidden {
			continue
		}

		name := fmt.Sprintf("--%s", f.Name)
		if f.Short != 0 {
			name = fmt.Sprintf("-%c, --%s", f.Short, f.Name)
		}
		if !f.IsBool() && f.PlaceHolder != "" {
			name += "=" + strings.ToUpper(f.PlaceHolder)
		}

		def := ""
		if f.HasDefault {
			def = f.Default
		}
		flags = append(flags, item{name: name, help: f.Help, defaultVal: def})
	}
	return flags
}
