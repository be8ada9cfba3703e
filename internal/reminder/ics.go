package reminder

import (
	"fmt"
	"io"
	"time"

	ics "github.com/emersion/go-ical"
)

const prodID = "-//hpungsan//rolodex//EN"

// WriteICS encodes reminders as an iCalendar stream: one VEVENT with a
// display VALARM per reminder, stamped with now.
func WriteICS(w io.Writer, reminders []Reminder, now time.Time) error {
	cal := ics.NewCalendar()
	cal.Props.SetText(ics.PropVersion, "2.0")
	cal.Props.SetText(ics.PropProductID, prodID)

	for _, r := range reminders {
		event := ics.NewEvent()
		event.Props.SetText(ics.PropUID, fmt.Sprintf("%s-%d@rolodex", r.NoteID, r.ExternalID))
		event.Props.SetDateTime(ics.PropDateTimeStamp, now.UTC())
		event.Props.SetDateTime(ics.PropDateTimeStart, r.At.UTC())
		event.Props.SetText(ics.PropSummary, r.Title)
		if r.Body != "" {
			event.Props.SetText(ics.PropDescription, r.Body)
		}

		alarm := ics.NewComponent(ics.CompAlarm)
		alarm.Props.SetText(ics.PropAction, "DISPLAY")
		trigger := ics.NewProp(ics.PropTrigger)
		trigger.Value = "PT0S"
		alarm.Props.Set(trigger)
		alarm.Props.SetText(ics.PropDescription, r.Title)
		event.Children = append(event.Children, alarm)

		cal.Children = append(cal.Children, event.Component)
	}

	if err := ics.NewEncoder(w).Encode(cal); err != nil {
		return fmt.Errorf("encode calendar: %w", err)
	}
	return nil
}
