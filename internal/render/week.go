// Package render рисует недельную занятость поля в PNG
package render

import (
	"bytes"
	"image/color"
	"strconv"
	"sync"
	"time"

	"github.com/Freeeeeet/field_rental/internal/model"
	"github.com/fogleman/gg"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

// Константы размеров и отступов
const (
	imageWidth       = 1400
	imageHeight      = 900
	headerHeight     = 100
	leftLabelsWidth  = 80
	legendWidth      = 140
	dayPaddingX      = 8
	minSlotHeight    = 8.0
	slotBorderRadius = 6.0
	shadowOffset     = 3.0
	totalDaysInWeek  = 7
	hourPaddingTop   = 1
	hourPaddingBot   = 1
	defaultMinHour   = 8
	defaultMaxHour   = 22
)

const (
	titleFontSize      = 25.0
	dayFontSize        = 24.0
	hourLabelFontSize  = 16.0
	slotTimeFontSize   = 15.0
	legendItemFontSize = 13.0
)

// Цветовая схема
var (
	bgColor          = color.RGBA{245, 246, 248, 255}
	textColor        = color.RGBA{80, 85, 90, 220}
	hourLabelColor   = color.RGBA{110, 115, 120, 200}
	hourLineColor    = color.NRGBA{150, 150, 150, 255}
	todayBgColor     = color.NRGBA{255, 99, 71, 90}
	evenDayColor     = color.NRGBA{240, 240, 240, 255}
	oddDayColor      = color.NRGBA{225, 225, 225, 255}
	currentTimeColor = color.NRGBA{255, 80, 80, 200}

	pendingColor   = color.RGBA{255, 214, 102, 230}
	confirmedColor = color.RGBA{255, 182, 193, 255}
	completedColor = color.RGBA{158, 158, 158, 200}
	defaultColor   = color.RGBA{220, 220, 220, 200}
	slotTextColor  = color.RGBA{20, 24, 28, 230}
	slotShadow     = color.RGBA{0, 0, 0, 20}

	legendItemColor = color.RGBA{70, 74, 78, 220}
)

type weekBounds struct {
	start time.Time
	end   time.Time
}

type hourRange struct {
	start int
	end   int
	total int
}

var (
	regularFont = sync.OnceValues(func() (*opentype.Font, error) { return opentype.Parse(goregular.TTF) })
	boldFont    = sync.OnceValues(func() (*opentype.Font, error) { return opentype.Parse(gobold.TTF) })
)

// setFont выбирает шрифт Go нужного размера, при ошибке basicfont
func setFont(dc *gg.Context, size float64, bold bool) {
	parse := regularFont
	if bold {
		parse = boldFont
	}

	f, err := parse()
	if err == nil {
		face, err := opentype.NewFace(f, &opentype.FaceOptions{
			Size:    size,
			DPI:     72,
			Hinting: font.HintingFull,
		})
		if err == nil {
			dc.SetFontFace(face)
			return
		}
	}

	dc.SetFontFace(basicfont.Face7x13)
}

// WeekImage рисует занятость поля на неделю, содержащую day.
// Интервалы берутся в UTC; cancelled бронирования не рисуются.
func WeekImage(fieldName string, day time.Time, bookings []*model.Booking, now time.Time) ([]byte, error) {
	week := weekOf(day)
	today := normalizeToDay(now.UTC())
	highlightToday := !today.Before(week.start) && !today.After(week.end)

	byDay := groupByDay(bookings)
	hours := calculateHourRange(bookings)

	dc := gg.NewContext(imageWidth, imageHeight)
	dc.SetColor(bgColor)
	dc.Clear()

	dayWidth := (imageWidth - leftLabelsWidth - legendWidth) / totalDaysInWeek
	dayHeight := imageHeight - headerHeight
	cellHeight := float64(dayHeight) / float64(hours.total)

	drawHeader(dc, fieldName, week)
	drawHourLabels(dc, hours, cellHeight)

	current := week.start
	for i := 0; i < totalDaysInWeek; i++ {
		x := float64(leftLabelsWidth + i*dayWidth)
		y := float64(headerHeight)

		drawDayBackground(dc, x, y, dayWidth, dayHeight, i, highlightToday && current.Equal(today))
		drawDayHeader(dc, current, x, y, dayWidth)
		drawHourLines(dc, x, y, dayWidth, hours, cellHeight)
		for _, b := range byDay[current.Format(time.DateOnly)] {
			drawBooking(dc, b, x, y, dayWidth, hours, cellHeight)
		}

		current = current.AddDate(0, 0, 1)
	}

	if highlightToday {
		drawCurrentTimeLine(dc, now.UTC(), hours, cellHeight, dayWidth)
	}
	drawLegend(dc, dayWidth)

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WeekRange полуоткрытый интервал недели [понедельник, следующий понедельник) в UTC
func WeekRange(day time.Time) (time.Time, time.Time) {
	week := weekOf(day)
	return week.start, week.end.AddDate(0, 0, 1)
}

func weekOf(day time.Time) weekBounds {
	d := normalizeToDay(day.UTC())

	daysSinceMonday := int(d.Weekday()) - 1
	if d.Weekday() == time.Sunday {
		daysSinceMonday = 6
	}

	start := d.AddDate(0, 0, -daysSinceMonday)
	return weekBounds{start: start, end: start.AddDate(0, 0, 6)}
}

func normalizeToDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// groupByDay раскладывает бронирования по дню начала
func groupByDay(bookings []*model.Booking) map[string][]*model.Booking {
	byDay := make(map[string][]*model.Booking)
	for _, b := range bookings {
		if !b.Status.Occupies() {
			continue
		}
		key := b.StartTime.UTC().Format(time.DateOnly)
		byDay[key] = append(byDay[key], b)
	}
	return byDay
}

func calculateHourRange(bookings []*model.Booking) hourRange {
	minHour, maxHour := 24, 0

	for _, b := range bookings {
		if !b.Status.Occupies() {
			continue
		}
		start, end := b.StartTime.UTC(), b.EndTime.UTC()
		startH := start.Hour()
		endH := end.Hour()
		if end.Minute() > 0 || !sameDay(start, end) {
			endH++
		}
		if !sameDay(start, end) {
			endH = 24
		}
		minHour = min(minHour, startH)
		maxHour = max(maxHour, endH)
	}

	if minHour == 24 {
		minHour, maxHour = defaultMinHour, defaultMaxHour
	}

	startHour := max(minHour-hourPaddingTop, 0)
	endHour := min(maxHour+hourPaddingBot, 24)

	return hourRange{start: startHour, end: endHour, total: max(endHour-startHour, 1)}
}

func sameDay(a, b time.Time) bool {
	return a.Year() == b.Year() && a.YearDay() == b.YearDay()
}

func drawHeader(dc *gg.Context, fieldName string, week weekBounds) {
	title := fieldName + " · " + week.start.Format("02.01") + " - " + week.end.Format("02.01.2006")

	setFont(dc, titleFontSize, true)
	dc.SetColor(textColor)
	dc.DrawStringAnchored(title, float64(leftLabelsWidth), float64(headerHeight)/4, 0, 0.5)
}

func drawHourLabels(dc *gg.Context, hours hourRange, cellHeight float64) {
	setFont(dc, hourLabelFontSize, false)
	dc.SetColor(hourLabelColor)

	for i := 0; i <= hours.total; i++ {
		y := float64(headerHeight) + float64(i)*cellHeight
		dc.DrawStringAnchored(formatHourLabel(hours.start+i), float64(leftLabelsWidth)-10, y, 1, 0.5)
	}
}

func drawDayBackground(dc *gg.Context, x, y float64, dayWidth, dayHeight, dayIndex int, isToday bool) {
	switch {
	case isToday:
		dc.SetColor(todayBgColor)
	case dayIndex%2 == 0:
		dc.SetColor(evenDayColor)
	default:
		dc.SetColor(oddDayColor)
	}
	dc.DrawRectangle(x, y, float64(dayWidth), float64(dayHeight))
	dc.Fill()
}

func drawDayHeader(dc *gg.Context, date time.Time, x, y float64, dayWidth int) {
	setFont(dc, dayFontSize, true)
	dc.SetColor(textColor)
	dc.DrawStringAnchored(date.Format("02.01"), x+float64(dayWidth)/2, y, 0.5, -1)
	dc.DrawStringAnchored(weekdayShort(date.Weekday()), x+float64(dayWidth)/2, y, 0.5, -0.2)
}

func drawHourLines(dc *gg.Context, x, y float64, dayWidth int, hours hourRange, cellHeight float64) {
	dc.SetLineWidth(0.3)
	dc.SetColor(hourLineColor)

	for i := 0; i <= hours.total; i++ {
		hy := y + float64(i)*cellHeight
		dc.DrawLine(x, hy, x+float64(dayWidth), hy)
		dc.Stroke()
	}
}

func drawBooking(dc *gg.Context, b *model.Booking, x, y float64, dayWidth int, hours hourRange, cellHeight float64) {
	start, end := b.StartTime.UTC(), b.EndTime.UTC()

	startHour := float64(start.Hour()) + float64(start.Minute())/60.0
	endHour := float64(end.Hour()) + float64(end.Minute())/60.0
	// Бронирование через полночь обрезаем концом дня
	if !sameDay(start, end) {
		endHour = 24
	}

	slotY := y + (startHour-float64(hours.start))*cellHeight
	slotHeight := max((endHour-startHour)*cellHeight, minSlotHeight)
	slotWidth := float64(dayWidth) - float64(dayPaddingX*2)
	fill := statusColor(b.Status)

	dc.SetColor(slotShadow)
	dc.DrawRoundedRectangle(x+dayPaddingX+shadowOffset, slotY+2+shadowOffset, slotWidth, slotHeight-4, slotBorderRadius)
	dc.Fill()

	dc.SetColor(fill)
	dc.DrawRoundedRectangle(x+dayPaddingX, slotY+2, slotWidth, slotHeight-4, slotBorderRadius)
	dc.Fill()

	dc.SetColor(darkenColor(fill, 0.8))
	dc.SetLineWidth(1)
	dc.DrawRoundedRectangle(x+dayPaddingX, slotY+2, slotWidth, slotHeight-4, slotBorderRadius)
	dc.Stroke()

	if slotHeight > 20 {
		setFont(dc, slotTimeFontSize, false)
		dc.SetColor(slotTextColor)
		dc.DrawStringAnchored(start.Format("15:04")+"-"+end.Format("15:04"), x+dayPaddingX+8, slotY+18, 0, 0)
	}
}

func statusColor(status model.BookingStatus) color.RGBA {
	switch status {
	case model.BookingStatusPending:
		return pendingColor
	case model.BookingStatusConfirmed:
		return confirmedColor
	case model.BookingStatusCompleted:
		return completedColor
	default:
		return defaultColor
	}
}

func darkenColor(c color.RGBA, factor float64) color.RGBA {
	return color.RGBA{
		R: uint8(float64(c.R) * factor),
		G: uint8(float64(c.G) * factor),
		B: uint8(float64(c.B) * factor),
		A: c.A,
	}
}

func drawCurrentTimeLine(dc *gg.Context, now time.Time, hours hourRange, cellHeight float64, dayWidth int) {
	current := float64(now.Hour()) + float64(now.Minute())/60.0
	if current < float64(hours.start) || current > float64(hours.end) {
		return
	}

	y := float64(headerHeight) + (current-float64(hours.start))*cellHeight
	dc.SetColor(currentTimeColor)
	dc.SetLineWidth(2.0)
	dc.DrawLine(float64(leftLabelsWidth), y, float64(leftLabelsWidth+totalDaysInWeek*dayWidth), y)
	dc.Stroke()
}

func drawLegend(dc *gg.Context, dayWidth int) {
	items := []struct {
		label string
		clr   color.Color
	}{
		{"Ожидает", pendingColor},
		{"Подтверждено", confirmedColor},
		{"Завершено", completedColor},
	}

	const boxW, boxH = 20.0, 14.0
	x := float64(leftLabelsWidth + totalDaysInWeek*dayWidth + 10)
	y := float64(imageHeight) - 100.0 + 22

	for _, item := range items {
		dc.SetColor(item.clr)
		dc.DrawRoundedRectangle(x, y, boxW, boxH, 3)
		dc.Fill()

		setFont(dc, legendItemFontSize, false)
		dc.SetColor(legendItemColor)
		dc.DrawStringAnchored(item.label, x+boxW+8, y+boxH/2+1, 0, 0.2)
		y += boxH + 14
	}
}

func formatHourLabel(h int) string {
	if h < 10 {
		return "0" + strconv.Itoa(h) + ":00"
	}
	return strconv.Itoa(h) + ":00"
}

func weekdayShort(weekday time.Weekday) string {
	return [...]string{"Вс", "Пн", "Вт", "Ср", "Чт", "Пт", "Сб"}[weekday]
}
