package config

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
)

// String prints out a table of each component, with columns of name, model and the bus location it
// answers on, followed by a table of the jobs.
func (c *Config) String() string {
	t := table.NewWriter()
	t.AppendHeader(table.Row{"#", "Name", "Model", "Board", "Bus", "Address"})
	for i, conf := range c.Components {
		boardName, bus, addr := "", "", ""
		if target, ok := conf.ConvertedAttributes.(i2cTarget); ok {
			var a int
			boardName, bus, a = target.I2CTarget()
			addr = fmt.Sprintf("0x%02x", a)
		}
		t.AppendRow(table.Row{fmt.Sprintf("%d", i+1), conf.Name, conf.Model.Name, boardName, bus, addr})
	}
	out := t.Render()
	if len(c.Jobs) == 0 {
		return out
	}

	jt := table.NewWriter()
	jt.AppendHeader(table.Row{"Job", "Schedule", "Resource", "Method"})
	for _, jc := range c.Jobs {
		jt.AppendRow(table.Row{jc.Name, jc.Schedule, jc.Resource, jc.Method})
	}
	return out + "\n" + jt.Render()
}
