// Package tui renders hubspoke runs in the terminal.
//
// RunApp is a read-only bubbletea program that follows every rank of a
// run through its lifecycle phases. It is fed orchestrator events:
//
//	program, app := tui.NewRunProgram(worldSize)
//	go func() {
//	    for ev := range emitter.Events() {
//	        program.Send(tui.EventMsg{Event: ev})
//	    }
//	    program.Send(tui.DoneMsg{Err: runErr})
//	}()
//	program.Run()
//
// The table helpers render topology layouts and scenario-tree assignments
// for the non-interactive commands.
package tui
