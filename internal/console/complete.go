package console

import "strings"

// Autocomplete extends text with the options that start with it, ignoring
// case. With one match the match is returned and exact is true. With more,
// text grows to their common prefix and the matches are returned as
// suggestions.
func Autocomplete(text string, options []string) (completed string, suggestions []string, exact bool) {
	lower := strings.ToLower(text)
	var matching []string
	for _, opt := range options {
		if strings.HasPrefix(strings.ToLower(opt), lower) {
			matching = append(matching, opt)
		}
	}

	switch len(matching) {
	case 0:
		return text, nil, false
	case 1:
		return matching[0], nil, true
	}

	prefix := matching[0]
	for _, opt := range matching[1:] {
		n := 0
		for n < len(prefix) && n < len(opt) && prefix[n] == opt[n] {
			n++
		}
		prefix = prefix[:n]
	}
	if len(prefix) < len(text) {
		prefix = text
	}
	return prefix, matching, false
}

// Complete autocompletes a console line: the command name first, then the
// argument of commands that know how to complete it.
func (c *Console) Complete(line string) (string, []string) {
	trimmed := strings.TrimLeft(line, " ")
	name, arg, hasArg := strings.Cut(trimmed, " ")
	if !hasArg {
		completed, suggestions, exact := Autocomplete(name, c.Commands())
		if exact {
			completed += " "
		}
		return completed, suggestions
	}

	cmd, ok := c.commands[strings.TrimPrefix(strings.ToLower(name), "/")]
	if !ok || cmd.complete == nil {
		return line, nil
	}
	arg = strings.TrimLeft(arg, " ")
	completed, suggestions := cmd.complete(c, arg)
	return name + " " + completed, suggestions
}

var getRoots = []string{"currentStory", "local.", "global."}

// completeGet completes the scope first, then a key of that scope.
func completeGet(c *Console, text string) (string, []string) {
	first, second, _ := strings.Cut(text, ".")
	if strings.Contains(text, ".") {
		first += "."
	}

	root, suggestions, exact := Autocomplete(first, getRoots)
	if !exact || root == "currentStory" {
		return root, suggestions
	}
	key, suggestions, _ := Autocomplete(second, c.target.ValueList(strings.TrimSuffix(root, ".")))
	return root + key, suggestions
}

func completeSaves(c *Console, text string) (string, []string) {
	saves, err := c.target.ListSaves()
	if err != nil {
		c.log.Warn("listing saves failed", "error", err)
		return text, nil
	}
	completed, suggestions, _ := Autocomplete(text, saves)
	return completed, suggestions
}
