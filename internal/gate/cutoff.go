package gate

import (
	"errors"
	"fmt"
	"path"
	"strings"

	"github.com/mattn/go-shellwords"
)

// paramKeys are the nested parameter maps searched for a cutoff, in order.
var paramKeys = []string{"params", "parameters", "arguments", "args"}

const (
	pitKey  = "pit"
	pitFlag = "--pit"
)

var errUnparseableCommand = errors.New("command line cannot be tokenized")

// ungroup blanks unquoted subshell parentheses so "(cd x; pit-fetch ...)"
// tokenizes. $( ... ) substitutions are kept.
func ungroup(cmd string) string {
	out := []rune(cmd)
	var single, double, escaped bool
	subst := 0
	for i, r := range out {
		switch {
		case escaped:
			escaped = false
		case r == '\\' && !single:
			escaped = true
		case r == '\'' && !double:
			single = !single
		case r == '"' && !single:
			double = !double
		case single || double:
		case r == '(' && i > 0 && out[i-1] == '$':
			subst++
		case r == '(':
			out[i] = ' '
		case r == ')' && subst > 0:
			subst--
		case r == ')':
			out[i] = ' '
		}
	}
	return string(out)
}

// commandWords splits a shell command into words across ;, && and | segments.
func commandWords(cmd string) ([]string, error) {
	var words []string
	rest := []rune(ungroup(cmd))
	for len(rest) > 0 {
		p := shellwords.NewParser()
		args, err := p.Parse(string(rest))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errUnparseableCommand, err)
		}
		words = append(words, args...)
		if p.Position < 0 || p.Position >= len(rest) {
			break
		}
		rest = rest[p.Position+1:]
	}
	return words, nil
}

// flagValue returns the value of the first --pit flag in words.
func flagValue(words []string) (string, bool) {
	for i, w := range words {
		if v, ok := strings.CutPrefix(w, pitFlag+"="); ok {
			return v, true
		}
		if w == pitFlag {
			if i+1 < len(words) {
				return words[i+1], true
			}
			return "", true
		}
	}
	return "", false
}

func stringValue(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// extractCutoff searches the tool input for a cutoff: nested parameter maps,
// then a flat field, then a --pit flag in a command line. The first match
// wins. A null value counts as absent.
func extractCutoff(input map[string]any) (string, bool, error) {
	for _, k := range paramKeys {
		if m, ok := input[k].(map[string]any); ok {
			if v, ok := m[pitKey]; ok && v != nil {
				return stringValue(v), true, nil
			}
		}
	}
	if v, ok := input[pitKey]; ok && v != nil {
		return stringValue(v), true, nil
	}
	cmd, ok := input["command"].(string)
	if !ok || !strings.Contains(cmd, pitFlag) {
		return "", false, nil
	}
	words, err := commandWords(cmd)
	if err != nil {
		return "", true, err
	}
	v, found := flagValue(words)
	return v, found, nil
}

// shellCommand returns the command line when the call is a shell invocation.
func shellCommand(toolName string, shellTools []string, input map[string]any) (string, bool) {
	cmd, hasCmd := input["command"].(string)
	for _, t := range shellTools {
		if strings.EqualFold(toolName, t) {
			return cmd, true
		}
	}
	return cmd, hasCmd
}

// referencesWrapper reports whether any word of cmd names a wrapper script,
// ignoring directories and extensions. An untokenizable command is
// assumed to reference one.
func referencesWrapper(cmd string, wrappers []string) bool {
	words, err := commandWords(cmd)
	if err != nil {
		return true
	}
	for _, w := range words {
		base := path.Base(w)
		names := []string{base}
		if ext := path.Ext(base); ext != "" {
			// script.py, or package.module for python -m
			names = append(names, strings.TrimSuffix(base, ext), ext[1:])
		}
		for _, n := range names {
			for _, wrapper := range wrappers {
				if strings.EqualFold(n, wrapper) {
					return true
				}
			}
		}
	}
	return false
}
