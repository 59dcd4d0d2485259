package kbload

import (
	"github.com/hashicorp/hcl/v2"
)

// fileRoot is a struct used to decode all possible top-level blocks from any file.
type fileRoot struct {
	Nodes      []*nodeBlock      `hcl:"node,block"`
	Links      []*linkBlock      `hcl:"link,block"`
	Connectors []*connectorBlock `hcl:"connector,block"`
	Sets       []*setBlock       `hcl:"set,block"`
	Templates  []*templateBlock  `hcl:"template,block"`
}

type nodeBlock struct {
	Name    string   `hcl:"name,label"`
	Type    *string  `hcl:"type,optional"`
	Classes []string `hcl:"classes,optional"`
}

type linkBlock struct {
	Name    string         `hcl:"name,label"`
	Type    *string        `hcl:"type,optional"`
	Content hcl.Expression `hcl:"content,optional"`
}

type connectorBlock struct {
	Name  string   `hcl:"name,label"`
	Type  *string  `hcl:"type,optional"`
	From  string   `hcl:"from"`
	To    string   `hcl:"to"`
	Attrs []string `hcl:"attrs,optional"`
}

type setBlock struct {
	Name     string   `hcl:"name,label"`
	Type     *string  `hcl:"type,optional"`
	Members  []string `hcl:"members,optional"`
	Oriented bool     `hcl:"oriented,optional"`
}

type templateBlock struct {
	Name            string  `hcl:"name,label"`
	Kind            string  `hcl:"kind"`
	Structure       *string `hcl:"structure,optional"`
	Input           *string `hcl:"input,optional"`
	Output          *string `hcl:"output,optional"`
	Erase           *string `hcl:"erase,optional"`
	Sort            *string `hcl:"sort,optional"`
	PositiveFilters *string `hcl:"positive_filters,optional"`
	NegativeFilters *string `hcl:"negative_filters,optional"`
	Init            *string `hcl:"init,optional"`
	Next            *string `hcl:"next,optional"`
	WaitTime        *int64  `hcl:"wait_time,optional"`
}
