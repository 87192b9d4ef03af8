package pgmux

import (
	"context"
	"encoding/json"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// RegisterMCPTools registers the connection-management and SQL operation
// tools on the given MCP server. Every tool returns either a text payload
// or the rendered message of a classified error.
func RegisterMCPTools(mcpServer *server.MCPServer, p *PgMux) {
	// register and unregister manage the connection registry itself.
	registerTool := mcp.NewTool("register",
		mcp.WithDescription("Register a new PostgreSQL connection. Returns an opaque connection handle used by every other tool."),
		mcp.WithString("conn_str",
			mcp.Required(),
			mcp.Description("PostgreSQL connection string"),
		),
	)

	mcpServer.AddTool(registerTool, p.loggedToolHandler("register", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		connStr, err := req.RequireString("conn_str")
		if err != nil {
			return mcp.NewToolResultError("conn_str parameter is required"), nil
		}
		handle, err := p.Register(ctx, connStr)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText(handle), nil
	}))

	unregisterTool := mcp.NewTool("unregister",
		mcp.WithDescription("Unregister a PostgreSQL connection. Queries already running against the connection complete normally."),
		mcp.WithString("conn_id",
			mcp.Required(),
			mcp.Description("Connection handle to unregister"),
		),
	)

	mcpServer.AddTool(unregisterTool, p.loggedToolHandler("unregister", func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		handle, err := req.RequireString("conn_id")
		if err != nil {
			return mcp.NewToolResultError("conn_id parameter is required"), nil
		}
		if err := p.Unregister(handle); err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return mcp.NewToolResultText("success"), nil
	}))

	// The remaining tools share one shape: a connection handle plus a
	// single string argument, returning a text payload.
	type opTool struct {
		name     string
		desc     string
		arg      string
		argDesc  string
		readOnly bool
		run      func(ctx context.Context, handle, arg string) (string, error)
	}

	ops := []opTool{
		{"query", "Execute a single SELECT query. Rows are aggregated into one JSON array; the caller should LIMIT the number of rows returned.", "query", "Single SQL SELECT statement", true, p.Query},
		{"insert", "Execute a single INSERT statement. Multiple rows for the same table are allowed.", "query", "Single SQL INSERT statement", false, p.Insert},
		{"update", "Execute a single UPDATE statement. May update multiple rows depending on the WHERE clause.", "query", "Single SQL UPDATE statement", false, p.Update},
		{"delete", "Execute a single DELETE statement. May delete multiple rows depending on the WHERE clause.", "query", "Single SQL DELETE statement", false, p.Delete},
		{"create_table", "Create a new table from a single CREATE TABLE statement.", "query", "Single SQL CREATE TABLE statement", false, p.CreateTable},
		{"drop_table", "Drop a table by name. Format: schema.table; schema defaults to the current schema.", "table", "Table name", false, p.DropTable},
		{"create_index", "Create an index from a single CREATE INDEX statement.", "query", "Single SQL CREATE INDEX statement", false, p.CreateIndex},
		{"drop_index", "Drop an index by name.", "index", "Index name", false, p.DropIndex},
		{"describe", "Describe a table's columns as a JSON array (name, type, nullability, default, max length).", "table", "Table name, optionally schema-qualified (schema.table)", true, p.Describe},
		{"list_tables", "List base tables in a schema as a JSON array of table metadata.", "schema", "Schema name", true, p.ListTables},
		{"create_schema", "Create a new schema. The name may contain only letters, digits, and underscores.", "name", "Schema name", false, p.CreateSchema},
		{"create_type", "Create a type from a single CREATE TYPE statement.", "query", "Single SQL CREATE TYPE statement", false, p.CreateType},
	}

	for _, op := range ops {
		opts := []mcp.ToolOption{
			mcp.WithDescription(op.desc),
			mcp.WithString("conn_id",
				mcp.Required(),
				mcp.Description("Connection handle returned by register"),
			),
			mcp.WithString(op.arg,
				mcp.Required(),
				mcp.Description(op.argDesc),
			),
		}
		if op.readOnly {
			opts = append(opts, mcp.WithReadOnlyHintAnnotation(true))
		}

		argName := op.arg
		run := op.run
		mcpServer.AddTool(mcp.NewTool(op.name, opts...), p.loggedToolHandler(op.name, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			handle, err := req.RequireString("conn_id")
			if err != nil {
				return mcp.NewToolResultError("conn_id parameter is required"), nil
			}
			arg, err := req.RequireString(argName)
			if err != nil {
				return mcp.NewToolResultError(argName + " parameter is required"), nil
			}
			result, err := run(ctx, handle, arg)
			if err != nil {
				return mcp.NewToolResultError(err.Error()), nil
			}
			return mcp.NewToolResultText(result), nil
		}))
	}
}

// loggedToolHandler wraps a tool handler to log request and response lengths.
func (p *PgMux) loggedToolHandler(tool string, handler server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		reqLen := requestLength(req)
		result, err := handler(ctx, req)
		respLen := resultLength(result)
		p.logger.Info().
			Str("tool", tool).
			Int("request_bytes", reqLen).
			Int("response_bytes", respLen).
			Msg("tool call")
		return result, err
	}
}

// requestLength returns the JSON-encoded byte length of the request arguments.
func requestLength(req mcp.CallToolRequest) int {
	args := req.GetArguments()
	if len(args) == 0 {
		return 0
	}
	b, err := json.Marshal(args)
	if err != nil {
		return 0
	}
	return len(b)
}

// resultLength returns the total byte length of text content in a CallToolResult.
func resultLength(result *mcp.CallToolResult) int {
	if result == nil {
		return 0
	}
	total := 0
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			total += len(tc.Text)
		}
	}
	return total
}
