package deck

import (
	"bytes"
	"fmt"
	"html/template"
)

var slideTemplate = template.Must(template.New("slide").Parse(`<!DOCTYPE html>
<html><head><meta charset="utf-8">
<style>
html,body{margin:0;padding:0;width:{{.Width}}px;height:{{.Height}}px;overflow:hidden;background:#fff;}
body{box-sizing:border-box;padding:56px 72px;font-family:"Noto Sans JP","Hiragino Sans",sans-serif;color:#1f2937;}
h1{font-size:52px;margin:0 0 24px;}
h2{font-size:40px;margin:0 0 24px;border-bottom:4px solid #2563eb;padding-bottom:8px;}
h3{font-size:32px;}
p,li{font-size:28px;line-height:1.5;}
pre{font-size:20px;background:#f3f4f6;padding:16px;border-radius:8px;}
.title{display:flex;flex-direction:column;justify-content:center;height:100%;}
</style></head>
<body><div class="{{.Class}}">{{.Body}}</div></body></html>`))

// Slide viewport used for imaging.
const (
	SlideWidth  = 1280
	SlideHeight = 720
)

// SlideHTML renders one slide's markdown into a standalone 1280x720 page.
func SlideHTML(slide string) (string, error) {
	var body bytes.Buffer
	if err := mdParser.Convert([]byte(slide), &body); err != nil {
		return "", fmt.Errorf("convert slide: %w", err)
	}

	class := "content"
	if ParseSlide(slide).Kind == SlideTitle {
		class = "title"
	}

	var out bytes.Buffer
	err := slideTemplate.Execute(&out, struct {
		Width, Height int
		Class         string
		Body          template.HTML
	}{SlideWidth, SlideHeight, class, template.HTML(body.String())})
	if err != nil {
		return "", fmt.Errorf("render slide page: %w", err)
	}
	return out.String(), nil
}
