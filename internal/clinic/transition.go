package clinic

// AuthorizeTransition applies the role x transition matrix for a requested
// status change. It validates the requested status, then who may ask for
// it, then whether the appointment's current status allows it. It never
// mutates the appointment; side effects (the check-in timestamp rewrite)
// belong to the service.
func AuthorizeTransition(appt *Appointment, requested Status, actor Identity) error {
	if !requested.Valid() {
		return ErrUnknownStatus
	}

	switch requested {
	case StatusWaiting:
		// Any staff role can send a patient to the waiting queue.
		if !actor.Role.Valid() {
			return ErrForbidden
		}
		if appt.Status.Terminal() {
			return ErrInvalidTransition
		}
		return nil

	case StatusInProgress:
		if err := requireOwner(appt, actor); err != nil {
			return err
		}
		if appt.Status != StatusWaiting {
			return ErrInvalidTransition
		}
		return nil

	case StatusCompleted:
		if err := requireOwner(appt, actor); err != nil {
			return err
		}
		// Strictly from in_progress; waiting -> completed is rejected.
		if appt.Status != StatusInProgress {
			return ErrInvalidTransition
		}
		return nil

	case StatusCancelled:
		if actor.Role != RoleReceptionist && actor.Role != RoleAdmin {
			return ErrForbidden
		}
		if appt.Status != StatusScheduled && appt.Status != StatusWaiting {
			return ErrInvalidTransition
		}
		return nil

	default:
		// scheduled is the creation status, never a transition target
		return ErrInvalidTransition
	}
}

// requireOwner checks that the actor is the physician assigned to the
// appointment.
func requireOwner(appt *Appointment, actor Identity) error {
	if actor.Role != RolePhysician {
		return ErrForbidden
	}
	if actor.ProfessionalID == nil || *actor.ProfessionalID != appt.ProfessionalID {
		return ErrNotOwner
	}
	return nil
}
