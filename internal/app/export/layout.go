package export

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/monitaro/pjmanager/internal/app/domain/project"
)

// A4 portrait geometry in millimetres.
const (
	PageWidth       = 210.0
	PageHeight      = 297.0
	Margin          = 20.0
	LineHeight      = 8.0
	SectionSpacing  = 12.0
	WrapWidth       = 170.0
	FieldLineHeight = 6.0
	RuleEnd         = 190.0

	TitleSize   = 18.0
	SectionSize = 14.0
	FieldSize   = 10.0
)

// Measurer reports the printed width of text in millimetres at a font size.
type Measurer interface {
	Width(text string, size float64) float64
}

// OpKind is a drawing instruction type.
type OpKind int

const (
	OpPage OpKind = iota
	OpText
	OpRule
)

// Op is one drawing instruction. Text lines start at (X, Y) and advance by
// FieldLineHeight; a rule runs from (X, Y) to (X2, Y).
type Op struct {
	Kind  OpKind
	X, Y  float64
	X2    float64
	Size  float64
	Lines []string
}

// Sheet is a laid out project document.
type Sheet struct {
	Title string
	Pages int
	Ops   []Op
}

type section struct {
	title   string
	entries []Entry
}

// Layout walks the project's sections top to bottom, starting a new page
// whenever a section header or field would cross the bottom margin. Empty
// fields are skipped and a section with nothing to show is left out.
func Layout(p project.Project, m Measurer) Sheet {
	l := &layouter{m: m, y: Margin}
	l.sheet.Title = "プロジェクト詳細: " + p.Number
	l.newPage()
	l.text(TitleSize, []string{l.sheet.Title})

	for _, sec := range sections(p) {
		var shown []Entry
		for _, e := range sec.entries {
			if e.Value != "" {
				shown = append(shown, e)
			}
		}
		if len(shown) == 0 {
			continue
		}
		l.sectionTitle(sec.title)
		for _, e := range shown {
			l.field(e.Label, e.Value)
		}
	}
	return l.sheet
}

// Filename is the download name of a project sheet.
func Filename(p project.Project) string {
	return "プロジェクト詳細_" + p.Number + ".pdf"
}

type layouter struct {
	m     Measurer
	y     float64
	sheet Sheet
}

func (l *layouter) newPage() {
	l.sheet.Pages++
	l.sheet.Ops = append(l.sheet.Ops, Op{Kind: OpPage})
	l.y = Margin
}

func (l *layouter) ensure(need float64) {
	if l.y+need > PageHeight-Margin {
		l.newPage()
	}
}

func (l *layouter) text(size float64, lines []string) {
	l.sheet.Ops = append(l.sheet.Ops, Op{Kind: OpText, X: Margin, Y: l.y, Size: size, Lines: lines})
}

func (l *layouter) sectionTitle(title string) {
	l.ensure(SectionSpacing)
	l.y += SectionSpacing
	l.text(SectionSize, []string{title})
	l.y += LineHeight
	l.sheet.Ops = append(l.sheet.Ops, Op{Kind: OpRule, X: Margin, Y: l.y, X2: RuleEnd})
	l.y += LineHeight
}

func (l *layouter) field(label, value string) {
	content := value
	if label != "" {
		content = label + ": " + value
	}
	lines := Wrap(content, WrapWidth, FieldSize, l.m)
	height := float64(len(lines)) * FieldLineHeight
	l.ensure(height)
	l.text(FieldSize, lines)
	l.y += height + 2
}

// Wrap breaks text into lines no wider than width. Explicit newlines are
// kept. Lines break after the last space that fits, or between any two
// characters when there is none, which suits Japanese text.
func Wrap(text string, width, size float64, m Measurer) []string {
	var out []string
	for _, para := range strings.Split(text, "\n") {
		out = append(out, wrapLine(para, width, size, m)...)
	}
	return out
}

func wrapLine(s string, width, size float64, m Measurer) []string {
	runes := []rune(s)
	if len(runes) == 0 {
		return []string{""}
	}
	var out []string
	for len(runes) > 0 {
		end := 1
		for end < len(runes) && m.Width(string(runes[:end+1]), size) <= width {
			end++
		}
		if end < len(runes) && runes[end] != ' ' {
			if sp := lastSpace(runes[:end]); sp > 0 {
				end = sp
			}
		}
		out = append(out, strings.TrimRightFunc(string(runes[:end]), unicode.IsSpace))
		runes = runes[end:]
		for len(runes) > 0 && runes[0] == ' ' {
			runes = runes[1:]
		}
	}
	return out
}

func lastSpace(runes []rune) int {
	for i := len(runes) - 1; i > 0; i-- {
		if runes[i] == ' ' {
			return i
		}
	}
	return -1
}

func sections(p project.Project) []section {
	v := func(s *string) string {
		if s == nil {
			return ""
		}
		return *s
	}
	var accessories []string
	n := 0
	for _, a := range p.Accessories {
		if a != "" {
			n++
			accessories = append(accessories, strconv.Itoa(n)+". "+a)
		}
	}
	dates := []Entry{
		{Label: "成約日", Value: v(p.ContractDate)},
		{Label: "設定作業完了日", Value: v(p.SetupCompletionDate)},
		{Label: "発送日", Value: v(p.ShippingDate)},
		{Label: "設置業務依頼日", Value: v(p.InstallationRequestDate)},
		{Label: "設置予定日", Value: v(p.InstallationScheduledDate)},
		{Label: "設置日", Value: v(p.InstallationDate)},
		{Label: "撤去業務依頼日", Value: v(p.RemovalRequestDate)},
		{Label: "撤去予定日", Value: v(p.RemovalScheduledDate)},
		{Label: "撤去日", Value: v(p.RemovalDate)},
		{Label: "撤去後検品日", Value: v(p.RemovalInspectionDate)},
	}
	if p.TransactionType == project.TransactionSale {
		dates = append(dates, Entry{Label: "販売時保証終了日", Value: v(p.WarrantyEndDate)})
	}
	return []section{
		{"基本情報", []Entry{
			{Label: "PJ番号", Value: p.Number},
			{Label: "案件発生日", Value: v(p.ProjectDate)},
			{Label: "取引形態", Value: string(p.TransactionType)},
			{Label: "契約ステータス", Value: string(p.ContractStatus)},
		}},
		{"担当・取引先情報", []Entry{
			{Label: "営業担当", Value: p.SalesPerson},
			{Label: "ディーラー名", Value: p.DealerName},
			{Label: "ディーラー担当者名", Value: p.DealerContact},
			{Label: "ゼネコン名", Value: p.GeneralContractor},
		}},
		{"現場情報", []Entry{
			{Label: "現場名", Value: p.SiteName},
			{Label: "設置場所 (都道府県)", Value: p.InstallationLocation},
			{Label: "設置場所住所", Value: p.InstallationAddress},
			{Label: "発送先住所", Value: p.ShippingAddress},
		}},
		{"商品情報", []Entry{
			{Label: "商品カテゴリ", Value: p.ProductCategory},
			{Label: "STB", Value: p.STB},
			{Label: "本体商品名", Value: p.MainProductName},
			{Label: "製品仕様", Value: p.ProductSpec},
			{Label: "付属品", Value: strings.Join(accessories, "\n")},
		}},
		{"パートナー情報", []Entry{
			{Label: "設置時パートナー", Value: p.InstallationPartner},
			{Label: "撤去時パートナー", Value: p.RemovalPartner},
		}},
		{"関連日付", dates},
		{"メモ", []Entry{{Label: "", Value: p.Memo}}},
	}
}
