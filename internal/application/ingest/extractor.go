package ingest

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/gen2brain/go-fitz"

	domainKnowledge "github.com/aimaestro/backend/internal/domain/knowledge"
)

// ExtractText 按文件类型提取纯文本
// 支持 pdf/txt/md/docx，其余类型返回 ErrUnsupportedFileType
func ExtractText(path, fileType string) (string, error) {
	switch strings.ToLower(fileType) {
	case "pdf":
		return extractPDF(path)
	case "txt", "md", "markdown":
		return extractPlainText(path)
	case "docx":
		return extractDocx(path)
	default:
		return "", fmt.Errorf("%w: %s", domainKnowledge.ErrUnsupportedFileType, fileType)
	}
}

// FileTypeFromName 从文件名推断文件类型
func FileTypeFromName(filename string) string {
	idx := strings.LastIndex(filename, ".")
	if idx < 0 || idx == len(filename)-1 {
		return ""
	}
	return strings.ToLower(filename[idx+1:])
}

// extractPlainText 读取纯文本文件
func extractPlainText(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to read file: %w", err)
	}
	return string(data), nil
}

// extractPDF 逐页提取 PDF 文本
func extractPDF(path string) (string, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domainKnowledge.ErrDocumentParse, err)
	}
	defer doc.Close()

	var pages []string
	for i := 0; i < doc.NumPage(); i++ {
		text, err := doc.Text(i)
		if err != nil {
			return "", fmt.Errorf("%w: page %d: %v", domainKnowledge.ErrDocumentParse, i+1, err)
		}
		pages = append(pages, text)
	}
	return strings.Join(pages, "\n"), nil
}

// docx word/document.xml 中的文本节点
type docxText struct {
	XMLName xml.Name
	Content string `xml:",chardata"`
}

// extractDocx 解压 docx 并解析主文档的文本节点
// docx 是 zip 容器，正文在 word/document.xml，段落边界映射为换行
func extractDocx(path string) (string, error) {
	reader, err := zip.OpenReader(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", domainKnowledge.ErrDocumentParse, err)
	}
	defer reader.Close()

	var documentXML io.ReadCloser
	for _, f := range reader.File {
		if f.Name == "word/document.xml" {
			documentXML, err = f.Open()
			if err != nil {
				return "", fmt.Errorf("%w: %v", domainKnowledge.ErrDocumentParse, err)
			}
			break
		}
	}
	if documentXML == nil {
		return "", fmt.Errorf("%w: missing word/document.xml", domainKnowledge.ErrDocumentParse)
	}
	defer documentXML.Close()

	var sb strings.Builder
	decoder := xml.NewDecoder(documentXML)
	for {
		token, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", fmt.Errorf("%w: %v", domainKnowledge.ErrDocumentParse, err)
		}

		switch t := token.(type) {
		case xml.StartElement:
			if t.Name.Local == "t" {
				var node docxText
				if err := decoder.DecodeElement(&node, &t); err != nil {
					return "", fmt.Errorf("%w: %v", domainKnowledge.ErrDocumentParse, err)
				}
				sb.WriteString(node.Content)
			}
		case xml.EndElement:
			if t.Name.Local == "p" {
				sb.WriteString("\n")
			}
		}
	}
	return sb.String(), nil
}
