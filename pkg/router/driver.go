package router

// drive applies a pass to the routes' lifecycles. Left routes are closed
// before entered routes are opened or updated, so observers never see the
// old and the new route opened at the same time.
func drive(res Result) Transitions {
	var t Transitions

	for _, e := range res.Left {
		// Already closed: no duplicate exit.
		if !e.Route.IsOpened() {
			continue
		}
		e.Route.Left()
		t.Left++
	}

	for _, e := range res.Entered {
		if e.Route.IsOpened() {
			e.Route.Updated(e.Params, e.Query)
			t.Updated++
			continue
		}
		e.Route.Opened(e.Params, e.Query)
		t.Opened++
	}

	return t
}
