// Copyright 2025 KrakLabs
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program. If not, see <https://www.gnu.org/licenses/>.
//
// For commercial licensing, contact: licensing@kraklabs.com
//
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package kernelscan lists the names of CUDA kernel entry points
// (__global__ functions) in a source file.
//
// The scan combines a Tree-sitter C++ parse with a lexical pass. The C++
// grammar does not know CUDA qualifiers, so a kernel is any function
// definition whose leading declaration text contains __global__; the lexical
// pass catches definitions the grammar recovers from badly. The result is a
// diagnostic used to audit model output, not an authoritative parse.
package kernelscan

import (
	"bytes"
	"context"
	"fmt"
	"regexp"
	"slices"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/cpp"
)

const marker = "__global__"

var (
	launchBoundsPattern = regexp.MustCompile(`__launch_bounds__\s*\([^)]*\)`)
	lineCommentPattern  = regexp.MustCompile(`//[^\n]*`)
	blockCommentPattern = regexp.MustCompile(`(?s)/\*.*?\*/`)
	kernelDeclPattern   = regexp.MustCompile(`__global__\s+(?:[\w:<>,\*&]+\s+)*?(\w+)\s*\(`)
)

// Scan returns the sorted, de-duplicated kernel names defined or declared in
// src.
func Scan(ctx context.Context, src []byte) ([]string, error) {
	if !bytes.Contains(src, []byte(marker)) {
		return []string{}, nil
	}

	names, err := scanTree(ctx, src)
	if err != nil {
		return nil, err
	}
	names = append(names, scanLexical(src)...)

	slices.Sort(names)
	return slices.Compact(names), nil
}

// Missing returns the names in found that are absent from extracted.
func Missing(found, extracted []string) []string {
	have := make(map[string]struct{}, len(extracted))
	for _, n := range extracted {
		have[n] = struct{}{}
	}
	var out []string
	for _, n := range found {
		if _, ok := have[n]; !ok {
			out = append(out, n)
		}
	}
	return out
}

func scanTree(ctx context.Context, src []byte) ([]string, error) {
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(cpp.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse: %w", err)
	}
	defer tree.Close()

	var names []string
	walk(tree.RootNode(), src, &names)
	return names, nil
}

func walk(node *sitter.Node, src []byte, names *[]string) {
	if node == nil {
		return
	}
	if node.Type() == "function_definition" && isKernel(node, src) {
		if name := declaratorName(node.ChildByFieldName("declarator"), src); name != "" {
			*names = append(*names, name)
		}
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		walk(node.Child(i), src, names)
	}
}

// isKernel reports whether the declaration text leading up to the function's
// declarator mentions __global__. The leading text starts after the previous
// statement or block boundary, so template headers and recovered ERROR nodes
// in front of the definition are included.
func isKernel(fn *sitter.Node, src []byte) bool {
	start := int(fn.StartByte())
	end := start
	if decl := fn.ChildByFieldName("declarator"); decl != nil {
		end = int(decl.StartByte())
	}
	from := bytes.LastIndexAny(src[:start], ";{}") + 1
	return bytes.Contains(src[from:end], []byte(marker))
}

func declaratorName(n *sitter.Node, src []byte) string {
	for n != nil {
		switch n.Type() {
		case "identifier", "field_identifier":
			return n.Content(src)
		case "qualified_identifier", "template_function":
			n = n.ChildByFieldName("name")
		default:
			n = n.ChildByFieldName("declarator")
		}
	}
	return ""
}

func scanLexical(src []byte) []string {
	text := blockCommentPattern.ReplaceAll(src, []byte(" "))
	text = lineCommentPattern.ReplaceAll(text, nil)
	text = launchBoundsPattern.ReplaceAll(text, nil)

	var names []string
	for _, m := range kernelDeclPattern.FindAllSubmatch(text, -1) {
		names = append(names, string(m[1]))
	}
	return names
}
