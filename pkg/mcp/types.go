// Package mcp defines the wire types of the Model Context Protocol: the
// JSON-RPC 2.0 envelope, capability descriptors, content parts, and the
// request/result payloads shared by every MCP method.
package mcp

import "encoding/json"

// CurrentVersion is the protocol version this package speaks by default.
const CurrentVersion = "2025-11-25"

// SupportedVersions lists the protocol versions this package accepts
// during initialization, in addition to CurrentVersion.
var SupportedVersions = []string{
	CurrentVersion,
	"2025-06-18",
	"2024-11-05",
}

// IsSupportedVersion reports whether v is CurrentVersion or one of the
// backward-compatible versions this package accepts.
func IsSupportedVersion(v string) bool {
	for _, supported := range SupportedVersions {
		if v == supported {
			return true
		}
	}
	return false
}

// ID is a JSON-RPC request identifier: a string, a number, or absent
// (nil) on notifications. It round-trips through JSON without coercing
// numeric ids to floats when they started life as integers.
type ID struct {
	value interface{}
}

// NewID wraps a string or integer id. Passing nil produces the zero ID,
// which marshals to JSON null and is used for notifications.
func NewID(v interface{}) ID {
	switch v.(type) {
	case nil, string, int, int64, float64:
		return ID{value: v}
	default:
		return ID{value: nil}
	}
}

// IsZero reports whether the ID is absent (a notification has no id).
func (id ID) IsZero() bool { return id.value == nil }

// Value returns the underlying string/number, or nil.
func (id ID) Value() interface{} { return id.value }

func (id ID) String() string {
	switch v := id.value.(type) {
	case string:
		return v
	case int, int64, float64:
		return jsonNumber(v)
	default:
		return ""
	}
}

func jsonNumber(v interface{}) string {
	b, _ := json.Marshal(v)
	return string(b)
}

func (id ID) MarshalJSON() ([]byte, error) {
	if id.value == nil {
		return []byte("null"), nil
	}
	return json.Marshal(id.value)
}

func (id *ID) UnmarshalJSON(data []byte) error {
	var n int64
	if string(data) != "null" && json.Unmarshal(data, &n) == nil {
		id.value = n
		return nil
	}
	var v interface{}
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	id.value = v
	return nil
}

// Equal compares two ids by underlying JSON value.
func (id ID) Equal(other ID) bool {
	return jsonNumber(id.value) == jsonNumber(other.value)
}

// Message is a JSON-RPC 2.0 envelope. Exactly one of (Method,
// Result/Error) is meaningful depending on whether this is a
// request/notification or a response; Params is only present on
// requests/notifications.
type Message struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      *ID             `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// IsRequest reports whether the message is an inbound/outbound request
// (has a method and an id).
func (m *Message) IsRequest() bool {
	return m.Method != "" && m.ID != nil
}

// IsNotification reports whether the message is a notification (has a
// method, no id).
func (m *Message) IsNotification() bool {
	return m.Method != "" && m.ID == nil
}

// IsResponse reports whether the message carries a result or error for
// a previously sent request.
func (m *Message) IsResponse() bool {
	return m.Method == "" && m.ID != nil && (m.Result != nil || m.Error != nil)
}

// RequestTaskMeta is a _meta shape holding only the requestTask flag a
// caller sets when it wants an asynchronous, task-backed tool
// invocation. CallToolParams carries that flag in CallToolMeta.
type RequestTaskMeta struct {
	RequestTask bool `json:"requestTask,omitempty"`
}

// Capabilities

// ClientCapabilities is the client half of the capability handshake.
type ClientCapabilities struct {
	Experimental map[string]interface{} `json:"experimental,omitempty"`
	Roots        *RootsCapability       `json:"roots,omitempty"`
	Sampling     *SamplingCapability    `json:"sampling,omitempty"`
	Elicitation  *ElicitationCapability `json:"elicitation,omitempty"`
}

// ServerCapabilities is the server half of the capability handshake.
type ServerCapabilities struct {
	Experimental map[string]interface{} `json:"experimental,omitempty"`
	Logging      *LoggingCapability     `json:"logging,omitempty"`
	Completions  *CompletionsCapability `json:"completions,omitempty"`
	Prompts      *PromptsCapability     `json:"prompts,omitempty"`
	Resources    *ResourcesCapability   `json:"resources,omitempty"`
	Tools        *ToolsCapability       `json:"tools,omitempty"`
}

type RootsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

type SamplingCapability struct{}

type ElicitationCapability struct{}

type LoggingCapability struct{}

type CompletionsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

type PromptsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

type ResourcesCapability struct {
	Subscribe   bool `json:"subscribe,omitempty"`
	ListChanged bool `json:"listChanged,omitempty"`
}

type ToolsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Lifecycle

type InitializeParams struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ClientCapabilities `json:"capabilities"`
	ClientInfo      ClientInfo         `json:"clientInfo"`
}

type InitializeResult struct {
	ProtocolVersion string             `json:"protocolVersion"`
	Capabilities    ServerCapabilities `json:"capabilities"`
	ServerInfo      ServerInfo         `json:"serverInfo"`
	Instructions    string             `json:"instructions,omitempty"`
}

// Content parts

// ContentPart is a tagged-union content item. Exactly the fields
// relevant to Type are populated; the rest are left zero.
type ContentPart struct {
	Type string `json:"type"`

	// text
	Text string `json:"text,omitempty"`

	// image / audio
	Data     string `json:"data,omitempty"`
	MimeType string `json:"mimeType,omitempty"`

	// resource
	Resource *EmbeddedResource `json:"resource,omitempty"`

	// tool_use
	ToolUseID string                 `json:"id,omitempty"`
	Name      string                 `json:"name,omitempty"`
	Input     map[string]interface{} `json:"input,omitempty"`

	// tool_result
	ToolResultUseID string        `json:"toolUseId,omitempty"`
	Content         []ContentPart `json:"content,omitempty"`
	IsError         bool          `json:"isError,omitempty"`

	Meta map[string]interface{} `json:"_meta,omitempty"`
}

// EmbeddedResource is the payload of a "resource" content part.
type EmbeddedResource struct {
	URI      string `json:"uri"`
	Text     string `json:"text,omitempty"`
	Blob     string `json:"blob,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
}

func TextContent(text string) ContentPart {
	return ContentPart{Type: "text", Text: text}
}

func ImageContent(data, mimeType string) ContentPart {
	return ContentPart{Type: "image", Data: data, MimeType: mimeType}
}

func AudioContent(data, mimeType string) ContentPart {
	return ContentPart{Type: "audio", Data: data, MimeType: mimeType}
}

func ResourceContentPart(r EmbeddedResource) ContentPart {
	return ContentPart{Type: "resource", Resource: &r}
}

// Tools

// Annotations carries advisory hints about a tool's behavior.
type Annotations struct {
	Title           string `json:"title,omitempty"`
	ReadOnlyHint    bool   `json:"readOnlyHint,omitempty"`
	DestructiveHint bool   `json:"destructiveHint,omitempty"`
	IdempotentHint  bool   `json:"idempotentHint,omitempty"`
	OpenWorldHint   bool   `json:"openWorldHint,omitempty"`
}

// Tool describes a callable capability. InputSchema/OutputSchema are
// serialized JSON Schema documents (see package schema for the typed
// model that produces them).
type Tool struct {
	Name         string                 `json:"name"`
	Description  string                 `json:"description,omitempty"`
	InputSchema  map[string]interface{} `json:"inputSchema"`
	OutputSchema map[string]interface{} `json:"outputSchema,omitempty"`
	Annotations  *Annotations           `json:"annotations,omitempty"`
	Meta         map[string]interface{} `json:"_meta,omitempty"`
}

type ListToolsParams struct {
	Cursor string `json:"cursor,omitempty"`
}

type ListToolsResult struct {
	Tools      []Tool  `json:"tools"`
	NextCursor *string `json:"nextCursor"`
}

// CallToolMeta carries the task-request opt-in alongside any progress
// token injected by the protocol engine.
type CallToolMeta struct {
	ProgressToken interface{} `json:"progressToken,omitempty"`
	RequestTask   bool        `json:"requestTask,omitempty"`
}

type CallToolParams struct {
	Name      string                 `json:"name"`
	Arguments map[string]interface{} `json:"arguments,omitempty"`
	Meta      *CallToolMeta          `json:"_meta,omitempty"`
}

type RelatedTask struct {
	TaskID string `json:"taskId"`
}

type CallToolResultMeta struct {
	RelatedTask *RelatedTask `json:"relatedTask,omitempty"`
}

// CallToolResult is the outcome of tools/call. Meta.relatedTask is set
// by the task subsystem when the result was produced asynchronously.
type CallToolResult struct {
	Content           []ContentPart          `json:"content"`
	StructuredContent map[string]interface{} `json:"structuredContent,omitempty"`
	IsError           bool                   `json:"isError,omitempty"`
	Meta              *CallToolResultMeta    `json:"_meta,omitempty"`
}

// Resources

type Resource struct {
	URI         string       `json:"uri"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	MimeType    string       `json:"mimeType,omitempty"`
	Annotations *Annotations `json:"annotations,omitempty"`
}

type ResourceTemplate struct {
	URITemplate string       `json:"uriTemplate"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	MimeType    string       `json:"mimeType,omitempty"`
	Annotations *Annotations `json:"annotations,omitempty"`
}

type ListResourcesParams struct {
	Cursor string `json:"cursor,omitempty"`
}

type ListResourcesResult struct {
	Resources  []Resource `json:"resources"`
	NextCursor *string    `json:"nextCursor"`
}

type ListResourceTemplatesResult struct {
	ResourceTemplates []ResourceTemplate `json:"resourceTemplates"`
	NextCursor        *string            `json:"nextCursor"`
}

type ReadResourceParams struct {
	URI string `json:"uri"`
}

type ReadResourceResult struct {
	Contents []ResourceContents `json:"contents"`
}

// ResourceContents is a tagged union: exactly one of Text/Blob is set.
type ResourceContents struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
	Blob     string `json:"blob,omitempty"`
}

type SubscribeParams struct {
	URI string `json:"uri"`
}

type UnsubscribeParams struct {
	URI string `json:"uri"`
}

type ResourceUpdatedParams struct {
	URI string `json:"uri"`
}

// Prompts

type PromptArgument struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required,omitempty"`
}

type Prompt struct {
	Name        string           `json:"name"`
	Description string           `json:"description,omitempty"`
	Arguments   []PromptArgument `json:"arguments,omitempty"`
}

type ListPromptsParams struct {
	Cursor string `json:"cursor,omitempty"`
}

type ListPromptsResult struct {
	Prompts    []Prompt `json:"prompts"`
	NextCursor *string  `json:"nextCursor"`
}

type GetPromptParams struct {
	Name      string            `json:"name"`
	Arguments map[string]string `json:"arguments,omitempty"`
}

// PromptMessage is one turn of a rendered prompt template.
type PromptMessage struct {
	Role    string      `json:"role"` // "user" | "assistant"
	Content ContentPart `json:"content"`
}

type GetPromptResult struct {
	Description string          `json:"description,omitempty"`
	Messages    []PromptMessage `json:"messages"`
}

// Logging

type LogLevel string

const (
	LogLevelDebug     LogLevel = "debug"
	LogLevelInfo      LogLevel = "info"
	LogLevelNotice    LogLevel = "notice"
	LogLevelWarning   LogLevel = "warning"
	LogLevelError     LogLevel = "error"
	LogLevelCritical  LogLevel = "critical"
	LogLevelAlert     LogLevel = "alert"
	LogLevelEmergency LogLevel = "emergency"
)

// logLevelRank orders levels for threshold comparisons; lower is less
// severe, matching §4.3's "debug < info < ... < emergency".
var logLevelRank = map[LogLevel]int{
	LogLevelDebug:     0,
	LogLevelInfo:      1,
	LogLevelNotice:    2,
	LogLevelWarning:   3,
	LogLevelError:     4,
	LogLevelCritical:  5,
	LogLevelAlert:     6,
	LogLevelEmergency: 7,
}

// AtLeast reports whether l is at least as severe as min.
func (l LogLevel) AtLeast(min LogLevel) bool {
	return logLevelRank[l] >= logLevelRank[min]
}

type SetLevelParams struct {
	Level LogLevel `json:"level"`
}

type LoggingMessageParams struct {
	Level  LogLevel    `json:"level"`
	Logger string      `json:"logger,omitempty"`
	Data   interface{} `json:"data"`
}

// Progress / cancellation

type ProgressParams struct {
	ProgressToken interface{} `json:"progressToken"`
	Progress      float64     `json:"progress"`
	Total         *float64    `json:"total,omitempty"`
	Message       string      `json:"message,omitempty"`
}

type CancelledParams struct {
	RequestID ID     `json:"requestId"`
	Reason    string `json:"reason,omitempty"`
}

// Sampling / elicitation / roots (client-serviced)

type SamplingMessage struct {
	Role    string      `json:"role"`
	Content ContentPart `json:"content"`
}

type ModelHint struct {
	Name string `json:"name,omitempty"`
}

type ModelPreferences struct {
	Hints                []ModelHint `json:"hints,omitempty"`
	CostPriority         *float64    `json:"costPriority,omitempty"`
	SpeedPriority        *float64    `json:"speedPriority,omitempty"`
	IntelligencePriority *float64    `json:"intelligencePriority,omitempty"`
}

type CreateMessageParams struct {
	Messages         []SamplingMessage `json:"messages"`
	SystemPrompt     string            `json:"systemPrompt,omitempty"`
	ModelPreferences *ModelPreferences `json:"modelPreferences,omitempty"`
	MaxTokens        int               `json:"maxTokens,omitempty"`
}

type CreateMessageResult struct {
	Role       string      `json:"role"`
	Content    ContentPart `json:"content"`
	Model      string      `json:"model"`
	StopReason string      `json:"stopReason,omitempty"`
}

type ElicitParams struct {
	Message         string                 `json:"message"`
	RequestedSchema map[string]interface{} `json:"requestedSchema"`
}

type ElicitResult struct {
	Action  string                 `json:"action"` // "accept" | "decline" | "cancel"
	Content map[string]interface{} `json:"content,omitempty"`
}

type Root struct {
	URI  string `json:"uri"`
	Name string `json:"name,omitempty"`
}

type ListRootsResult struct {
	Roots []Root `json:"roots"`
}

// Completion

type CompleteReference struct {
	Type string `json:"type"` // "ref/prompt" | "ref/resource"
	Name string `json:"name,omitempty"`
	URI  string `json:"uri,omitempty"`
}

type CompleteArgument struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type CompleteParams struct {
	Ref      CompleteReference `json:"ref"`
	Argument CompleteArgument  `json:"argument"`
}

type CompletionValues struct {
	Values  []string `json:"values"`
	Total   *int     `json:"total,omitempty"`
	HasMore bool     `json:"hasMore,omitempty"`
}

type CompleteResult struct {
	Completion CompletionValues `json:"completion"`
}

// Tasks

type TaskStatus string

const (
	TaskWorking       TaskStatus = "working"
	TaskInputRequired TaskStatus = "inputRequired"
	TaskCompleted     TaskStatus = "completed"
	TaskFailed        TaskStatus = "failed"
	TaskCancelled     TaskStatus = "cancelled"
)

// IsTerminal reports whether the status is one a task never leaves.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskCompleted, TaskFailed, TaskCancelled:
		return true
	default:
		return false
	}
}

type TaskMeta struct {
	CreatedFromRequestID interface{}            `json:"createdFromRequestId,omitempty"`
	Name                 string                 `json:"name,omitempty"`
	Input                map[string]interface{} `json:"input,omitempty"`
}

type Task struct {
	TaskID         string     `json:"taskId"`
	Status         TaskStatus `json:"status"`
	StatusMessage  string     `json:"statusMessage,omitempty"`
	TTLMillis      *int64     `json:"ttl,omitempty"`
	PollIntervalMS *int64     `json:"pollInterval,omitempty"`
	CreatedAt      string     `json:"createdAt"`
	LastUpdatedAt  string     `json:"lastUpdatedAt"`
	Meta           *TaskMeta  `json:"meta,omitempty"`
}

type CreateTaskParams struct {
	Name  string                 `json:"name"`
	Input map[string]interface{} `json:"input,omitempty"`
	TTL   *int64                 `json:"ttl,omitempty"`
}

type GetTaskParams struct {
	TaskID string `json:"taskId"`
}

type TaskResultParams struct {
	TaskID string `json:"taskId"`
}

type CancelTaskParams struct {
	TaskID string `json:"taskId"`
}

type ListTasksParams struct {
	Cursor string `json:"cursor,omitempty"`
}

type ListTasksResult struct {
	Tasks      []Task  `json:"tasks"`
	NextCursor *string `json:"nextCursor"`
}

type TaskStatusNotificationParams struct {
	Task Task `json:"task"`
}
