// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes postdesk tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/postdesk/internal/blogservice"
)

const postFormatURI = "postdesk://post-format"

// Server wraps the MCP server with postdesk tools.
type Server struct {
	mcp *server.MCPServer
	svc *blogservice.Service
}

// New creates a new MCP server with all postdesk tools registered.
func New(svc *blogservice.Service, version string) *Server {
	s := &Server{svc: svc}

	s.mcp = server.NewMCPServer(
		"postdesk",
		version,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_posts",
		mcp.WithDescription("List blog posts, newest first. Each entry carries the sha needed to update or delete it."),
	), s.listPosts)

	s.mcp.AddTool(mcp.NewTool("read_post",
		mcp.WithDescription("Read a blog post: parsed frontmatter, body, raw content and sha."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Filename (2024-01-01-hello.mdx) or repository path")),
	), s.readPost)

	s.mcp.AddTool(mcp.NewTool("create_post",
		mcp.WithDescription("Create a new blog post. The file is named <date>-<slug>.mdx. "+
			"Read the contract first via the get_post_contract tool or the "+postFormatURI+" resource."),
		mcp.WithString("title", mcp.Required(), mcp.Description("Post title")),
		mcp.WithString("slug", mcp.Required(), mcp.Description("URL slug; sanitized to lower-case a-z, 0-9 and dashes")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Markdown/MDX body without the frontmatter block")),
		mcp.WithString("date", mcp.Description("YYYY-MM-DD; defaults to today (UTC)")),
		mcp.WithString("frontmatter", mcp.Description("Optional JSON object with extra frontmatter fields (excerpt, category, coverImage, ...)")),
	), s.createPost)

	s.mcp.AddTool(mcp.NewTool("update_post",
		mcp.WithDescription("Replace the content of an existing post. Requires the sha returned by read_post or list_posts."),
		mcp.WithString("path", mcp.Required(), mcp.Description("Filename or repository path of the post")),
		mcp.WithString("content", mcp.Required(), mcp.Description("New body, or the full raw file when frontmatter is omitted")),
		mcp.WithString("sha", mcp.Required(), mcp.Description("sha of the version being replaced")),
		mcp.WithString("frontmatter", mcp.Description("Optional JSON object; when set the file is rebuilt from it and content")),
		mcp.WithString("message", mcp.Description("Optional commit message")),
	), s.updatePost)

	s.mcp.AddTool(mcp.NewTool("list_images",
		mcp.WithDescription("List uploaded blog images with their public URLs."),
	), s.listImages)

	s.mcp.AddTool(mcp.NewTool("upload_image",
		mcp.WithDescription("Upload an image from a data URI or an http(s) URL. Returns the public URL and a "+
			"Markdown snippet ready to paste into a post."),
		mcp.WithString("url", mcp.Required(), mcp.Description("data:image/...;base64,... or http(s) URL")),
		mcp.WithString("filename", mcp.Description("Optional target filename")),
	), s.uploadImage)

	s.mcp.AddTool(mcp.NewTool("get_post_contract",
		mcp.WithDescription("Returns the blog post format contract. "+
			"Call this before creating or updating posts to ensure correct structure."),
	), s.getPostContract)

	// Resource: post format contract.
	s.mcp.AddResource(
		mcp.NewResource(postFormatURI, "Post Format Contract",
			mcp.WithResourceDescription("Canonical MDX post format that all posts must follow."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readPostFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) *mcp.CallToolResult {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error())
	}
	return mcp.NewToolResultText(string(out))
}

// optionalString returns an optional argument, or "" when absent.
func optionalString(req mcp.CallToolRequest, key string) string {
	if v, err := req.RequireString(key); err == nil {
		return v
	}
	return ""
}

func optionalObject(req mcp.CallToolRequest, key string) (map[string]any, error) {
	raw := optionalString(req, key)
	if raw == "" {
		return nil, nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("%s must be a JSON object: %w", key, err)
	}
	return m, nil
}

func (s *Server) listPosts(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	posts, err := s.svc.ListPosts(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(posts), nil
}

func (s *Server) readPost(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	post, err := s.svc.GetPost(ctx, path)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("read %s: %v", path, err)), nil
	}
	return jsonResult(post), nil
}

func (s *Server) createPost(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	title, err := req.RequireString("title")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	slug, err := req.RequireString("slug")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	meta, err := optionalObject(req, "frontmatter")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if meta == nil {
		meta = map[string]any{}
	}
	meta["title"] = title

	res, err := s.svc.CreatePost(ctx, blogservice.CreatePostInput{
		Frontmatter: meta,
		Content:     content,
		Slug:        slug,
		Date:        optionalString(req, "date"),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res), nil
}

func (s *Server) updatePost(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	path, err := req.RequireString("path")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	sha, err := req.RequireString("sha")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	meta, err := optionalObject(req, "frontmatter")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	res, err := s.svc.UpdatePost(ctx, path, blogservice.UpdatePostInput{
		Frontmatter: meta,
		Content:     content,
		SHA:         sha,
		Message:     optionalString(req, "message"),
	})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(res), nil
}

func (s *Server) listImages(ctx context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	images, err := s.svc.ListImages(ctx)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(images), nil
}

func (s *Server) getPostContract(context.Context, mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(PostFormatContract), nil
}

func (s *Server) readPostFormatResource(context.Context, mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      postFormatURI,
			MIMEType: "text/markdown",
			Text:     PostFormatContract,
		},
	}, nil
}
