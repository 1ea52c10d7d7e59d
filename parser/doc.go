// Package parser turns uploaded file bytes into plain text.
//
// Dispatch is by file extension only: .txt, .pdf and .docx are supported.
// Extraction is best effort. Structure such as tables, images and layout is
// discarded, and PDF pages or DOCX paragraphs are separated by a newline.
package parser
