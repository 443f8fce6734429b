package mcp

import (
	"browsernerd/internal/actions"

	"github.com/mark3labs/mcp-go/mcp"
)

func str(description string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description}
}

func boolean(description string) map[string]interface{} {
	return map[string]interface{}{"type": "boolean", "description": description}
}

func number(description string) map[string]interface{} {
	return map[string]interface{}{"type": "number", "description": description}
}

func enum(description string, values []string) map[string]interface{} {
	return map[string]interface{}{"type": "string", "description": description, "enum": values}
}

func stringList(description string) map[string]interface{} {
	return map[string]interface{}{
		"type":        "array",
		"description": description,
		"items":       map[string]interface{}{"type": "string"},
	}
}

var timeoutProp = number("Timeout in milliseconds (capped by the server's max wait)")

func tool(name, description string, props map[string]interface{}, required ...string) mcp.Tool {
	if props == nil {
		props = map[string]interface{}{}
	}
	return mcp.Tool{
		Name:        name,
		Description: description,
		InputSchema: mcp.ToolInputSchema{
			Type:       "object",
			Properties: props,
			Required:   required,
		},
	}
}

// Tools returns the tool definitions, one per dispatcher command.
func Tools() []mcp.Tool {
	return []mcp.Tool{
		tool("launch", "Launch a browser session with tracing and video recording. Only one session may be active.",
			map[string]interface{}{
				"kind":        enum("Browser to launch", []string{"chromium", "chrome"}),
				"headless":    boolean("Run without a visible window"),
				"args":        stringList("Extra browser command-line flags, e.g. --window-size=1280,720"),
				"recordVideo": boolean("Record a video of the session (default true)"),
			}),
		tool("close", "Close the browser session, saving the trace and video.", nil),
		tool("navigate", "Navigate the page to a URL and wait for it to load.",
			map[string]interface{}{"url": str("URL to open"), "timeout": timeoutProp}, "url"),
		tool("click", "Click the element matching a CSS selector.",
			map[string]interface{}{"selector": str("CSS selector"), "timeout": timeoutProp}, "selector"),
		tool("fill", "Replace the value of an input, textarea or contenteditable element.",
			map[string]interface{}{"selector": str("CSS selector"), "value": str("Text to enter"), "timeout": timeoutProp},
			"selector", "value"),
		tool("hover", "Move the mouse over an element.",
			map[string]interface{}{"selector": str("CSS selector"), "timeout": timeoutProp}, "selector"),
		tool("pressKey", "Press a key or chord such as Enter, Tab or Control+A, optionally on a focused element.",
			map[string]interface{}{"key": str("Key or chord"), "selector": str("Element to focus first"), "timeout": timeoutProp},
			"key"),
		tool("selectOption", "Select options of a <select> element by value or label.",
			map[string]interface{}{
				"selector": str("CSS selector of the <select>"),
				"values":   stringList("Option values or labels"),
				"value":    str("Single option value or label"),
				"timeout":  timeoutProp,
			}, "selector"),
		tool("getElementText", "Return the text content of an element.",
			map[string]interface{}{"selector": str("CSS selector"), "timeout": timeoutProp}, "selector"),
		tool("assert", "Poll until a condition on the page holds.",
			map[string]interface{}{
				"type":      enum("Assertion type", actions.AssertionTypes),
				"selector":  str("CSS selector for element assertions"),
				"value":     str("Expected text, value, attribute value, URL or title fragment"),
				"attribute": str("Attribute name for attribute assertions"),
				"timeout":   timeoutProp,
			}, "type"),
		tool("waitForSelector", "Wait for an element to reach a state.",
			map[string]interface{}{
				"selector": str("CSS selector"),
				"state":    enum("State to wait for (default visible)", actions.SelectorStates),
				"timeout":  timeoutProp,
			}, "selector"),
		tool("waitForNavigation", "Wait for the next page load.",
			map[string]interface{}{"timeout": timeoutProp}),
		tool("waitForTimeout", "Sleep for a fixed time.",
			map[string]interface{}{"milliseconds": number("Time to wait in milliseconds")}, "milliseconds"),
		tool("getCurrentURL", "Return the current page URL.", nil),
		tool("getCurrentTitle", "Return the current page title.", nil),
		tool("screenshot", "Save a PNG screenshot of the page to the screenshots directory.",
			map[string]interface{}{
				"name":     str("File name without extension (default screenshot-<timestamp>)"),
				"fullPage": boolean("Capture the full scrollable page"),
				"timeout":  timeoutProp,
			}),
	}
}
