// Command mcp-client is a smoke-test client for the werkbank MCP
// surface. It connects to a running gateway over streamable HTTP, lists
// the exposed tools and runs a code snippet through run_python.
//
// Usage:
//
//	mcp-client [-url http://localhost:8080/mcp] [-session demo] [-code "print(42)"]
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func main() {
	url := flag.String("url", "http://localhost:8080/mcp", "MCP endpoint URL")
	session := flag.String("session", "mcp-smoke", "session identifier")
	code := flag.String("code", "print('hello from the sandbox')", "Python code to run")
	flag.Parse()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	client := mcp.NewClient(&mcp.Implementation{Name: "werkbank-mcp-client", Version: "v1.0.0"}, nil)
	cs, err := client.Connect(ctx, &mcp.StreamableClientTransport{Endpoint: *url}, nil)
	if err != nil {
		log.Fatalf("connect to %s: %v", *url, err)
	}
	defer cs.Close()

	tools, err := cs.ListTools(ctx, nil)
	if err != nil {
		log.Fatalf("list tools: %v", err)
	}
	fmt.Println("Available tools:")
	for _, tool := range tools.Tools {
		fmt.Printf("  %s - %s\n", tool.Name, tool.Description)
	}

	fmt.Printf("\nCalling run_python (session %q)...\n", *session)
	res, err := cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      "run_python",
		Arguments: map[string]any{"code": *code, "session": *session},
	})
	if err != nil {
		log.Fatalf("call run_python: %v", err)
	}

	if res.IsError {
		fmt.Println("Tool error:")
	}
	images := 0
	for _, content := range res.Content {
		switch c := content.(type) {
		case *mcp.TextContent:
			fmt.Println(c.Text)
		case *mcp.ImageContent:
			images++
		}
	}
	if images > 0 {
		fmt.Printf("(%d image(s) returned)\n", images)
	}
}
