package schedule

// Commands is the handle systems use to reach back into the App: change
// state or register resources. Unlike the teacher's Commands, there is
// no entity/component mutation surface here — this domain has no
// entity tree.
type Commands struct {
	app *App
}

func (cmd *Commands) ChangeState(newState State) *Commands {
	cmd.app.ChangeState(newState)
	return cmd
}

func (cmd *Commands) AddResources(resources ...any) *Commands {
	cmd.app.addResources(resources...)
	return cmd
}

func (cmd *Commands) Logger() any {
	return cmd.app.Logger()
}
