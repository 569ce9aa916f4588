package tool

import (
	"errors"
	"fmt"
	"strings"

	"github.com/lihan0705/lead-agent/backend"
	"github.com/lihan0705/lead-agent/core"
	"github.com/lihan0705/lead-agent/internal/util"
)

// File tools operate on the run's backend, so paths are virtual and scoped to
// the configured root (typically the working directory).

const (
	readFileDefaultLimit = 2000 // lines per page
	readFileMaxLineChars = 2000
)

func backendFor(toolCtx *core.ToolContext, toolName string) (core.Backend, error) {
	if b := toolCtx.Backend(); b != nil {
		return b, nil
	}
	return nil, NewToolError(toolName, "no file backend configured", "BACKEND_MISSING")
}

// wrapBackendErr keeps not-found failures recognizable for the model.
func wrapBackendErr(toolName string, err error) error {
	if errors.Is(err, backend.ErrNotFound) {
		return NewToolError(toolName, err.Error(), "NOT_FOUND")
	}
	return err
}

type lsArgs struct {
	Path string `json:"path,omitempty" description:"Directory to list; defaults to the workspace root"`
}

// NewLsTool creates the ls tool. Directory entries are suffixed with "/".
func NewLsTool() *FunctionTool {
	return NewFunctionToolFromStruct("ls",
		"List the entries of a directory in the workspace. Directories are suffixed with /.",
		lsArgs{},
		func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
			b, err := backendFor(toolCtx, "ls")
			if err != nil {
				return nil, err
			}

			path := stringArg(args, "path", "/")
			entries, err := b.Ls(path)
			if err != nil {
				return nil, wrapBackendErr("ls", err)
			}
			if len(entries) == 0 {
				return "(empty directory)", nil
			}

			names := make([]string, 0, len(entries))
			for _, e := range entries {
				name := e.Name
				if e.IsDir {
					name += "/"
				}
				names = append(names, name)
			}
			return strings.Join(names, "\n"), nil
		})
}

type readFileArgs struct {
	FilePath string `json:"file_path" description:"Path of the file to read"`
	Offset   int    `json:"offset,omitempty" description:"Line number to start reading from (0-based)"`
	Limit    int    `json:"limit,omitempty" description:"Maximum number of lines to return (default 2000)"`
}

// NewReadFileTool creates the read_file tool. Output is numbered cat -n
// style; offset/limit page through large files and long lines are truncated.
func NewReadFileTool() *FunctionTool {
	return NewFunctionToolFromStruct("read_file",
		"Read a file from the workspace with numbered lines. Use offset and limit to page through large files.",
		readFileArgs{},
		func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
			b, err := backendFor(toolCtx, "read_file")
			if err != nil {
				return nil, err
			}

			path := stringArg(args, "file_path", "")
			content, err := b.Read(path)
			if err != nil {
				return nil, wrapBackendErr("read_file", err)
			}
			if strings.TrimSpace(content) == "" {
				return "File exists but has empty contents", nil
			}

			lines := strings.Split(content, "\n")
			if lines[len(lines)-1] == "" {
				lines = lines[:len(lines)-1]
			}

			offset := intArg(args, "offset", 0)
			limit := intArg(args, "limit", readFileDefaultLimit)
			if limit <= 0 {
				limit = readFileDefaultLimit
			}
			if offset < 0 {
				offset = 0
			}
			if offset >= len(lines) {
				return nil, NewToolError("read_file",
					fmt.Sprintf("line offset %d exceeds file length (%d lines)", offset, len(lines)),
					"VALIDATION_ERROR")
			}

			end := offset + limit
			if end > len(lines) {
				end = len(lines)
			}

			out := make([]string, 0, end-offset)
			for i := offset; i < end; i++ {
				out = append(out, fmt.Sprintf("%6d\t%s", i+1, util.Truncate(lines[i], readFileMaxLineChars)))
			}
			return strings.Join(out, "\n"), nil
		})
}

type writeFileArgs struct {
	FilePath string `json:"file_path" description:"Path of the file to create or overwrite"`
	Content  string `json:"content" description:"Full content to write"`
}

// NewWriteFileTool creates the write_file tool.
func NewWriteFileTool() *FunctionTool {
	return NewFunctionToolFromStruct("write_file",
		"Create or overwrite a file in the workspace with the given content.",
		writeFileArgs{},
		func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
			b, err := backendFor(toolCtx, "write_file")
			if err != nil {
				return nil, err
			}

			path := stringArg(args, "file_path", "")
			content, _ := args["content"].(string)
			if err := b.Write(path, content); err != nil {
				return nil, wrapBackendErr("write_file", err)
			}
			return fmt.Sprintf("Updated file %s (%d bytes)", path, len(content)), nil
		})
}

type editFileArgs struct {
	FilePath   string `json:"file_path" description:"Path of the file to edit"`
	OldString  string `json:"old_string" description:"Exact text to replace"`
	NewString  string `json:"new_string" description:"Replacement text"`
	ReplaceAll bool   `json:"replace_all,omitempty" description:"Replace every occurrence instead of requiring a unique match"`
}

// NewEditFileTool creates the edit_file tool. The old text must occur exactly
// once unless replace_all is set; zero matches is always an error.
func NewEditFileTool() *FunctionTool {
	return NewFunctionToolFromStruct("edit_file",
		"Replace an exact text occurrence in a file. Set replace_all to replace every occurrence.",
		editFileArgs{},
		func(toolCtx *core.ToolContext, args map[string]any) (any, error) {
			b, err := backendFor(toolCtx, "edit_file")
			if err != nil {
				return nil, err
			}

			path := stringArg(args, "file_path", "")
			oldString, _ := args["old_string"].(string)
			newString, _ := args["new_string"].(string)

			count, err := b.Edit(path, oldString, newString, boolArg(args, "replace_all"))
			if err != nil {
				return nil, wrapBackendErr("edit_file", err)
			}
			return fmt.Sprintf("Successfully replaced %d occurrence(s) in %s", count, path), nil
		})
}
