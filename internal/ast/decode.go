package ast

import (
	"encoding/json"
	"errors"
	"fmt"
)

type wireDecl struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

type wireStatement struct {
	Decl  *wireDecl        `json:"decl,omitempty"`
	Text  *string          `json:"text,omitempty"`
	Block *string          `json:"block,omitempty"`
	Body  []*wireStatement `json:"body,omitempty"`
	Tail  string           `json:"tail,omitempty"`
}

type wirePrototype struct {
	ReturnType string     `json:"return_type"`
	Name       string     `json:"name"`
	Params     []wireDecl `json:"params"`
}

type wireFunction struct {
	Prototype wirePrototype    `json:"prototype"`
	Body      []*wireStatement `json:"body"`
}

// Decode parses a function tree from the decompiler's JSON representation.
func Decode(data []byte) (*Function, error) {
	var wf wireFunction
	if err := json.Unmarshal(data, &wf); err != nil {
		return nil, fmt.Errorf("decode function: %w", err)
	}
	if wf.Prototype.Name == "" {
		return nil, errors.New("decode function: missing prototype name")
	}
	f := &Function{
		Prototype: Prototype{
			ReturnType: wf.Prototype.ReturnType,
			Name:       wf.Prototype.Name,
		},
	}
	for _, p := range wf.Prototype.Params {
		f.Prototype.Params = append(f.Prototype.Params, &VarDecl{Type: p.Type, Name: p.Name})
	}
	body, err := decodeStatements(wf.Body)
	if err != nil {
		return nil, err
	}
	f.Body = body
	return f, nil
}

func decodeStatements(in []*wireStatement) ([]*Statement, error) {
	out := make([]*Statement, 0, len(in))
	for i, ws := range in {
		switch {
		case ws == nil:
			return nil, fmt.Errorf("statement %d: empty", i)
		case ws.Decl != nil:
			if ws.Decl.Name == "" {
				return nil, fmt.Errorf("statement %d: declaration without name", i)
			}
			out = append(out, NewDecl(ws.Decl.Type, ws.Decl.Name))
		case ws.Block != nil:
			body, err := decodeStatements(ws.Body)
			if err != nil {
				return nil, fmt.Errorf("statement %d: %w", i, err)
			}
			out = append(out, NewBlock(*ws.Block, body, ws.Tail))
		case ws.Text != nil:
			out = append(out, NewLine(*ws.Text))
		default:
			return nil, fmt.Errorf("statement %d: unknown kind", i)
		}
	}
	return out, nil
}
