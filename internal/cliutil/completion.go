package cliutil

import "fmt"

// CompletionScript renders a shell completion script for binary, naming its
// flat flag set (both cmd/capture and cmd/report have no subcommands, so
// completion only needs to offer the flag list).
func CompletionScript(shell, binary string, flags []string) (string, error) {
	switch shell {
	case "bash":
		return bashCompletion(binary, flags), nil
	case "zsh":
		return zshCompletion(binary, flags), nil
	case "fish":
		return fishCompletion(binary, flags), nil
	default:
		return "", fmt.Errorf("unsupported shell: %s", shell)
	}
}

func bashCompletion(binary string, flags []string) string {
	return fmt.Sprintf(`# %[1]s bash completion script
# Save this script and source it from ~/.bashrc
_%[1]s_completions() {
    local cur prev
    COMPREPLY=()
    cur="${COMP_WORDS[COMP_CWORD]}"
    COMPREPLY=($(compgen -W "%[2]s" -- "${cur}"))
}
complete -F _%[1]s_completions %[1]s
`, binary, joinFlags(flags))
}

func zshCompletion(binary string, flags []string) string {
	return fmt.Sprintf(`#compdef %[1]s
_arguments %[2]s
`, binary, quoteFlags(flags))
}

func fishCompletion(binary string, flags []string) string {
	var out string
	for _, f := range flags {
		out += fmt.Sprintf("complete -c %s -l %s\n", binary, f)
	}
	return out
}

func joinFlags(flags []string) string {
	out := ""
	for i, f := range flags {
		if i > 0 {
			out += " "
		}
		out += "--" + f
	}
	return out
}

func quoteFlags(flags []string) string {
	out := ""
	for _, f := range flags {
		out += fmt.Sprintf("'--%s[]' ", f)
	}
	return out
}
