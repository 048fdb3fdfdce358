package results

import (
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Element names read inside an Elogica <result> block.
const (
	xmlResult    = "result"
	xmlBib       = "bib"
	xmlFirstName = "firstname"
	xmlLastName  = "lastname"
	xmlGender    = "gender"
	xmlCategory  = "category"
	xmlTime      = "time"
)

var elogicaFields = map[string]bool{
	xmlBib:       true,
	xmlFirstName: true,
	xmlLastName:  true,
	xmlGender:    true,
	xmlCategory:  true,
	xmlTime:      true,
}

// elogicaBlock collects the first occurrence of each known element.
type elogicaBlock map[string]string

func (b elogicaBlock) appendTo(res *ParseResult, row int) {
	bib, ok := parseBib(b[xmlBib])
	if !ok {
		res.addError(row, msgMissingBib)
		return
	}
	name := joinName(b[xmlFirstName], b[xmlLastName])
	if name == "" {
		res.addError(row, msgMissingName)
		return
	}
	res.Results = append(res.Results, ParsedResult{
		BibNumber:   bib,
		AthleteName: name,
		Gender:      normalizeGender(b[xmlGender]),
		Category:    strings.TrimSpace(b[xmlCategory]),
		FinishTime:  NormalizeTime(b[xmlTime]),
		Status:      StatusFinished,
	})
}

// ParseElogicaXML parses an Elogica XML export. Each top-level <result>
// element is one row; inside it the first bib, firstname, lastname, gender,
// category and time elements are read. Tag names are case-insensitive and
// no schema is enforced.
func ParseElogicaXML(content string) ParseResult {
	return safeParse(func() ParseResult { return parseElogica(content) })
}

func parseElogica(content string) ParseResult {
	dec := xml.NewDecoder(strings.NewReader(content))
	dec.Strict = false
	dec.AutoClose = xml.HTMLAutoClose
	dec.Entity = xml.HTMLEntity
	// Content is already decoded text whatever the prologue declares.
	dec.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}

	res := newParseResult()
	var (
		row        int
		block      elogicaBlock
		depth      int
		field      string
		fieldDepth int
		text       strings.Builder
	)

	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if block != nil {
				block.appendTo(&res, row)
			}
			if row == 0 {
				return batchError(fmt.Sprintf("XML invalide: %v", err))
			}
			res.addError(0, fmt.Sprintf("XML invalide: %v", err))
			return res
		}

		switch t := tok.(type) {
		case xml.StartElement:
			name := strings.ToLower(t.Name.Local)
			if block == nil {
				if name == xmlResult {
					row++
					block = elogicaBlock{}
					depth = 0
				}
				continue
			}
			depth++
			if field == "" && elogicaFields[name] {
				if _, seen := block[name]; !seen {
					field = name
					fieldDepth = depth
					text.Reset()
				}
			}

		case xml.CharData:
			if field != "" {
				text.Write(t)
			}

		case xml.EndElement:
			if block == nil {
				continue
			}
			if depth == 0 {
				block.appendTo(&res, row)
				block = nil
				continue
			}
			if field != "" && depth == fieldDepth {
				block[field] = strings.TrimSpace(text.String())
				field = ""
			}
			depth--
		}
	}

	if row == 0 {
		return batchError(msgNoXMLResults)
	}
	return res
}
