package synthesis

import (
	"bufio"
	"fmt"
	"regexp"
	"strings"

	"github.com/ppiankov/snpscope/internal/model"
)

var (
	separatorRe = regexp.MustCompile(`^-{3,}\s*$`)
	headingRe   = regexp.MustCompile(`(?m)^#+\s*(.+?)\s*$`)
	boldRe      = regexp.MustCompile(`\*\*(.+?)\*\*`)
	pmidRe      = regexp.MustCompile(`(?i)PMID[:\s]*(\d+)`)
)

type parseState int

const (
	stateSummary parseState = iota
	statePaperSection
)

type parser struct {
	state   parseState
	index   int // Section number; 0 is the summary
	current []string
	out     *model.Synthesis
}

// Parse splits a synthesis answer on horizontal-rule lines. The first
// section is the summary; every later non-empty section is one paper.
// Malformed input yields fewer sections, never an error.
func Parse(raw string) *model.Synthesis {
	p := &parser{
		state: stateSummary,
		out:   &model.Synthesis{Raw: raw, Sections: []model.PaperSection{}},
	}

	sc := bufio.NewScanner(strings.NewReader(raw))
	sc.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if separatorRe.MatchString(line) {
			p.flush()
			p.state = statePaperSection
			p.index++
			continue
		}
		p.current = append(p.current, line)
	}
	p.flush()

	return p.out
}

func (p *parser) flush() {
	body := strings.TrimSpace(strings.Join(p.current, "\n"))
	p.current = p.current[:0]
	if body == "" {
		return
	}

	switch p.state {
	case stateSummary:
		p.out.Summary = body
	case statePaperSection:
		p.out.Sections = append(p.out.Sections, model.PaperSection{
			Index:   p.index,
			Title:   sectionTitle(body, p.index),
			PaperID: sectionPaperID(body, p.index),
			Body:    body,
		})
	}
}

// sectionTitle takes the first heading, else the first bold run
func sectionTitle(body string, index int) string {
	var title string
	if m := headingRe.FindStringSubmatch(body); m != nil {
		title = m[1]
	} else if m := boldRe.FindStringSubmatch(body); m != nil {
		title = m[1]
	}
	title = strings.TrimSpace(strings.NewReplacer("*", "", "#", "").Replace(title))
	if title == "" {
		return fmt.Sprintf("Paper %d", index)
	}
	return title
}

func sectionPaperID(body string, index int) string {
	if m := pmidRe.FindStringSubmatch(body); m != nil {
		return "PMID:" + m[1]
	}
	return fmt.Sprintf("paper_%d", index)
}
