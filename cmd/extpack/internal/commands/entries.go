package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/wolfeidau/extpack/internal/config"
)

// EntriesCmd prints the entry points a build would bundle.
type EntriesCmd struct {
	ProjectFlags `embed:""`

	JSON bool `help:"print the chunk to source map as JSON"`
}

func (c *EntriesCmd) Run(ctx context.Context, globals *Globals) error {
	p, err := c.settings(config.Defaults())
	if err != nil {
		return err
	}

	l := c.layout(p)
	plan, err := l.Discover()
	if err != nil {
		return err
	}

	out := globals.stdout()

	if c.JSON {
		chunks := make(map[string]string, len(plan.Entries))
		for chunk, source := range plan.Chunks() {
			chunks[chunk] = relTo(l.Root, source)
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(chunks)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "CHUNK\tKIND\tSOURCE\tOUTPUT")
	for _, e := range plan.Entries {
		output := e.Output() + ".js"
		if page := e.Page(); page != "" {
			output += ", " + page
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Chunk, e.Kind, relTo(l.Root, e.Source), output)
	}
	return tw.Flush()
}
