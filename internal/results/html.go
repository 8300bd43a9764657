package results

import (
	"bytes"
	"embed"
	"html/template"
	"io"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// TemplateFuncs 结果模板使用的函数
var TemplateFuncs = template.FuncMap{
	"num":  FormatNumber,
	"rate": FormatRate,
}

var resultsTemplate = template.Must(
	template.New("results").Funcs(TemplateFuncs).ParseFS(templateFS, "templates/*.tmpl"),
)

// RenderHTML 输出结果页 HTML 片段
func RenderHTML(w io.Writer, view View) error {
	return resultsTemplate.ExecuteTemplate(w, "results", view)
}

// HTML 结果页 HTML 片段，用于嵌入外层页面
func HTML(view View) (template.HTML, error) {
	var buf bytes.Buffer
	if err := RenderHTML(&buf, view); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}
