package service

import (
	"fmt"
	"strings"

	"video2blog-server/models"
)

// FormatTimestamp 秒 -> MM:SS，分钟不进位到小时（可超过 99）
func FormatTimestamp(ts int) string {
	minutes := ts / 60
	seconds := ts % 60
	return fmt.Sprintf("%02d:%02d", minutes, seconds)
}

// BuildMarkdown 把摘要和步骤列表渲染为 Markdown 文章。
// 纯函数，无网络与文件 IO，相同输入输出字节一致。
// 下游的导出与发草稿流程依赖这里的 [MM:SS](timestamp) 与图片标记格式。
func BuildMarkdown(summary string, steps []models.Step) string {
	var parts []string
	if summary != "" {
		parts = append(parts, fmt.Sprintf("## 摘要\n\n%s\n", summary))
	}
	parts = append(parts, "## 步骤\n")

	for _, step := range steps {
		title := step.Title
		if title == "" {
			title = "步骤"
		}
		parts = append(parts, fmt.Sprintf("### %s [%s](timestamp)\n", title, FormatTimestamp(step.Timestamp)))
		if step.Description != "" {
			parts = append(parts, step.Description+"\n")
		}
		if step.ImagePath != "" {
			parts = append(parts, fmt.Sprintf("![%s](%s)\n", title, step.ImagePath))
		}
		parts = append(parts, "") // 段落间距
	}

	parts = append(parts, "## 总结与互动\n")
	parts = append(parts, "以上就是本次的分享，希望对你有帮助！如果有疑问、想法或不同的看法，欢迎在评论区留言，聊聊你的感受，一起把这个话题聊深聊透。\n")

	return strings.TrimSpace(strings.Join(parts, "\n")) + "\n"
}
