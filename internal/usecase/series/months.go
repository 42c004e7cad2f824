package series

import "fmt"

// MonthFormatter форматирует метку месяца. withYear выставляется, когда метки охватывают несколько лет.
type MonthFormatter interface {
	FormatMonth(year, month int, withYear bool) string
}

// MonthFormatterFunc адаптирует функцию к MonthFormatter.
type MonthFormatterFunc func(year, month int, withYear bool) string

// FormatMonth вызывает f.
func (f MonthFormatterFunc) FormatMonth(year, month int, withYear bool) string {
	return f(year, month, withYear)
}

var englishMonths = [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// EnglishMonths форматирует "Jan" или "Jan 2024".
var EnglishMonths MonthFormatter = MonthFormatterFunc(func(year, month int, withYear bool) string {
	name := englishMonths[(month-1+12)%12]
	if withYear {
		return fmt.Sprintf("%s %d", name, year)
	}
	return name
})

// JapaneseMonths форматирует "1月" или "2024年1月".
var JapaneseMonths MonthFormatter = MonthFormatterFunc(func(year, month int, withYear bool) string {
	if withYear {
		return fmt.Sprintf("%d年%d月", year, month)
	}
	return fmt.Sprintf("%d月", month)
})

// FormatterFor выбирает форматтер по языку ("ja" или любой другой).
func FormatterFor(locale string) MonthFormatter {
	if len(locale) >= 2 && locale[:2] == "ja" {
		return JapaneseMonths
	}
	return EnglishMonths
}
