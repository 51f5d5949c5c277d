package game

// View returns a deep copy of the game state redacted for one
// recipient. Players see their own secret at all times; the opponent's
// secret stays hidden until the game completes. Spectators see no
// secrets until completion. Pass an empty viewer for spectators.
func (g *Game) View(viewer PlayerID) *Game {
	view := *g
	p1 := *g.P1
	p2 := *g.P2
	p1.Guesses = append([]Guess{}, g.P1.Guesses...)
	p2.Guesses = append([]Guess{}, g.P2.Guesses...)
	view.P1 = &p1
	view.P2 = &p2

	if view.Status == StatusCompleted {
		return &view
	}

	if viewer != Player1 {
		view.P1.Secret = ""
	}
	if viewer != Player2 {
		view.P2.Secret = ""
	}
	return &view
}
