package mcpserver

// PostFormatContract describes the MDX post format that LLM consumers
// should follow when creating or updating posts.
const PostFormatContract = `# Blog Post Format Contract

Every post is a single MDX file under ` + "`" + `content/posts/` + "`" + `.

## Structure

` + "```" + `mdx
export const frontmatter = {
  "title": "Human-readable title",
  "date": "2025-01-15",
  "category": "engineering",
  "coverImage": "/blog-images/cover.png",
  "excerpt": "One or two sentences shown in listings.",
  "seoTitle": "Optional title for search engines",
  "seoDescription": "Optional meta description"
}

Body text in Markdown/MDX.
` + "```" + `

## Rules

1. The file starts with ` + "`" + `export const frontmatter = ` + "`" + ` followed by a JSON object,
   then exactly one blank line, then the body.
2. ` + "`" + `title` + "`" + ` is required. Every other field is optional.
3. The frontmatter is data, never code: no function calls, template strings or
   comments inside the object.
4. File names are ` + "`" + `YYYY-MM-DD-slug.mdx` + "`" + `. The slug is lower-case ` + "`" + `a-z` + "`" + `, ` + "`" + `0-9` + "`" + `
   and dashes. Files are never renamed after creation.
5. Every update and delete must carry the ` + "`" + `sha` + "`" + ` of the version being replaced.
   A stale sha is rejected; read the post again and retry.
6. **Encoding** is UTF-8 with a trailing newline.

## Images

- Upload via the ` + "`" + `upload_image` + "`" + ` tool. It returns a ` + "`" + `markdownImage` + "`" + ` field ready to paste into the body.
- Images live in ` + "`" + `public/blog-images/` + "`" + ` and are referenced as ` + "`" + `/blog-images/<filename>` + "`" + `.
- Supported formats: jpeg, png, gif, webp, svg. Maximum size is 5 MiB.
- Existing filenames are never overwritten; pick another name on conflict.
`
