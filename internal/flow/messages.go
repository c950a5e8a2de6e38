package flow

// Choice ids returned by interactive prompts. Inbound list/button replies
// carry these back; free text equal to an id is accepted too.
const (
	choiceYes = "yes"
	choiceNo  = "no"

	doctorPrefix = "doctor:"
	doctorAnyID  = "doctor:any"

	dateTodayID    = "date:today"
	dateTomorrowID = "date:tomorrow"
	dateOtherID    = "date:other"

	confirmID     = "confirm"
	findAnotherID = "find_another"
	acceptID      = "accept"
	tryAgainID    = "try_again"
	helpChooseID  = "help_choose"
	editID        = "edit"
	cancelID      = "cancel"

	periodPrefix = "period:"
	hourPrefix   = "hour:"
	slotPrefix   = "slot:"

	editDoctorID = "edit:doctor"
	editDateID   = "edit:date"
	editTimeID   = "edit:time"

	manageEditPrefix        = "edit_booking:"
	manageCancelPrefix      = "cancel_booking:"
	rescheduleAcceptPrefix  = "reschedule_accept:"
	rescheduleDeclinePrefix = "reschedule_decline:"
)

// Message templates. The renderer substitutes {var} placeholders and owns
// localization; the flow only picks which template to send.
const (
	msgAskRemark        = "Would you like to add a note for your {service} appointment?"
	msgAskRemarkText    = "Please type your note."
	msgPickDoctor       = "Which doctor would you like to see?"
	msgAnyDoctorLabel   = "Any available doctor"
	msgPickDate         = "Which day works for you?"
	msgAskDate          = "Please type the date as DD/MM/YYYY."
	msgBadDate          = "Sorry, I couldn't read the date \"{token}\". Please type it as DD/MM/YYYY."
	msgConfirmDate      = "Book for {date}?"
	msgAskTime          = "What time would you like? For example 14:00 or 2pm."
	msgBadTime          = "Sorry, I couldn't read the time \"{token}\". Please type it like 14:00 or 2pm."
	msgSlotFree         = "{time} on {date} is available. Shall I book it?"
	msgSlotTakenNearest = "{time} is taken. The closest free slot is {suggested}. Take it?"
	msgNoSlotNearby     = "Sorry, nothing is free near {time} on {date}."
	msgPickPeriod       = "Which part of the day suits you?"
	msgPickHour         = "Which hour?"
	msgPickSlot         = "These times are free:"
	msgHourFull         = "No free slots in that hour. Please pick another."
	msgSummary          = "Please confirm: {service} with {doctor} on {date} at {time}."
	msgPickEditField    = "What would you like to change?"
	msgRetryOrBrowse    = "Would you like to try a different time, or shall I show you what's free?"
	msgBookedOK         = "Done! Your appointment is booked for {date} at {time}. The clinic will confirm shortly."
	msgRescheduledOK    = "Your appointment has been moved to {date} at {time}."
	msgCancelled        = "Your booking has been cancelled."
	msgDraftDiscarded   = "No problem, I've discarded that booking."
	msgBookingNotFound  = "I couldn't find that booking. It may have been removed."
	msgStorageTrouble   = "Something went wrong saving your booking. Please try again."
	msgGenericTrouble   = "Sorry, something went wrong. Please try again."
	msgInvalidChoice    = "Please pick one of the options shown."

	msgRescheduleGone     = "That reschedule request is no longer open."
	msgRescheduleAccepted = "Great, your appointment is moved to {date} at {time}."
	msgRescheduleDeclined = "Understood, your original appointment stands."
)
