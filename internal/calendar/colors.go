package calendar

import "github.com/smartsalud/clinic-scheduler/internal/clinic"

// Color is a provider color id used as the event's visual status marker.
type Color string

const (
	ColorLavender  Color = "1"
	ColorSage      Color = "2"
	ColorGrape     Color = "3"
	ColorFlamingo  Color = "4"
	ColorBanana    Color = "5"
	ColorTangerine Color = "6"
	ColorPeacock   Color = "7"
	ColorGraphite  Color = "8"
	ColorBlueberry Color = "9"
	ColorBasil     Color = "10"
	ColorTomato    Color = "11"
)

// ColorForStatus maps an appointment status to its event color. Unknown
// statuses fall back to lavender.
func ColorForStatus(status clinic.AppointmentStatus) Color {
	switch status {
	case clinic.StatusPending:
		return ColorBanana
	case clinic.StatusConfirmed:
		return ColorBasil
	case clinic.StatusCancelled:
		return ColorTomato
	case clinic.StatusCompleted:
		return ColorGraphite
	case clinic.StatusNoShow:
		return ColorFlamingo
	case clinic.StatusRescheduled:
		return ColorPeacock
	default:
		return ColorLavender
	}
}
