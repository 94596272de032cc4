package config

import (
	"fmt"
	"os"

	"go.starlark.net/starlark"
)

// EvalRules runs the Starlark script at c.RulesFile and merges any
// forced_branches/forced_tags/excluded_symbols globals it defines (lists of
// symbol-name strings, or functions classify(name) -> "branch"/"tag"/
// "exclude"/None taking precedence when present) into c. The script sees
// only the symbol names discovered during Collect as its `symbols`
// predeclared global; it cannot touch the filesystem or network, since
// go.starlark.net grants no such capability by default.
func (c *Config) EvalRules(symbolNames []string) error {
	if c.RulesFile == "" {
		return nil
	}
	src, err := os.ReadFile(c.RulesFile)
	if err != nil {
		return fmt.Errorf("config: reading rules file %s: %w", c.RulesFile, err)
	}

	symbolList := make([]starlark.Value, len(symbolNames))
	for i, n := range symbolNames {
		symbolList[i] = starlark.String(n)
	}
	predeclared := starlark.StringDict{
		"symbols": starlark.NewList(symbolList),
	}

	thread := &starlark.Thread{Name: "cvs2svn-rules"}
	globals, err := starlark.ExecFile(thread, c.RulesFile, src, predeclared)
	if err != nil {
		return fmt.Errorf("config: evaluating rules file %s: %w", c.RulesFile, err)
	}

	if v, ok := globals["forced_branches"]; ok {
		names, err := stringListValue(v)
		if err != nil {
			return fmt.Errorf("config: forced_branches: %w", err)
		}
		c.ForcedBranches = append(c.ForcedBranches, names...)
	}
	if v, ok := globals["forced_tags"]; ok {
		names, err := stringListValue(v)
		if err != nil {
			return fmt.Errorf("config: forced_tags: %w", err)
		}
		c.ForcedTags = append(c.ForcedTags, names...)
	}
	if v, ok := globals["excluded_symbols"]; ok {
		names, err := stringListValue(v)
		if err != nil {
			return fmt.Errorf("config: excluded_symbols: %w", err)
		}
		c.ExcludedSymbols = append(c.ExcludedSymbols, names...)
	}
	if fn, ok := globals["classify"]; ok {
		if err := c.applyClassifyFunction(thread, fn, symbolNames); err != nil {
			return err
		}
	}
	return nil
}

// applyClassifyFunction calls a user-supplied classify(name) Starlark
// function once per discovered symbol, sorting the result into the
// matching rule list. Lets a rules file express a pattern ("anything
// matching vendor-* is excluded") without enumerating every symbol name by
// hand.
func (c *Config) applyClassifyFunction(thread *starlark.Thread, fn starlark.Value, symbolNames []string) error {
	callable, ok := fn.(starlark.Callable)
	if !ok {
		return fmt.Errorf("config: rules file's \"classify\" global is not callable")
	}
	for _, name := range symbolNames {
		result, err := starlark.Call(thread, callable, starlark.Tuple{starlark.String(name)}, nil)
		if err != nil {
			return fmt.Errorf("config: calling classify(%q): %w", name, err)
		}
		verdict, ok := starlark.AsString(result)
		if !ok {
			if result == starlark.None {
				continue
			}
			return fmt.Errorf("config: classify(%q) returned a non-string, non-None value", name)
		}
		switch verdict {
		case "branch":
			c.ForcedBranches = append(c.ForcedBranches, name)
		case "tag":
			c.ForcedTags = append(c.ForcedTags, name)
		case "exclude":
			c.ExcludedSymbols = append(c.ExcludedSymbols, name)
		case "":
			// no opinion; leave to the default heuristic
		default:
			return fmt.Errorf("config: classify(%q) returned unrecognized verdict %q", name, verdict)
		}
	}
	return nil
}

func stringListValue(v starlark.Value) ([]string, error) {
	list, ok := v.(*starlark.List)
	if !ok {
		return nil, fmt.Errorf("expected a list, got %s", v.Type())
	}
	out := make([]string, 0, list.Len())
	iter := list.Iterate()
	defer iter.Done()
	var item starlark.Value
	for iter.Next(&item) {
		s, ok := starlark.AsString(item)
		if !ok {
			return nil, fmt.Errorf("expected a list of strings, got element of type %s", item.Type())
		}
		out = append(out, s)
	}
	return out, nil
}
