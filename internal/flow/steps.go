package flow

import (
	"context"
	"fmt"
	"strings"
)

func textPrompt(text string) func(context.Context, State) (Prompt, error) {
	return func(context.Context, State) (Prompt, error) { return Prompt{Text: text}, nil }
}

func titleStep(text string) step {
	return step{
		id:     StepTitle,
		field:  FieldTitle,
		prompt: textPrompt(text),
		accept: func(_ context.Context, _ State, in Input) (string, error) {
			return requireText(StepTitle, in.Text, MaxTitleLen)
		},
	}
}

func (e *Engine) loggingIn() *definition {
	return &definition{
		kind: KindLoggingIn,
		steps: []step{
			{
				id:     StepLogin,
				field:  FieldLogin,
				prompt: textPrompt("🔐 Enter your login:"),
				accept: func(_ context.Context, _ State, in Input) (string, error) {
					return requireText(StepLogin, in.Text, 0)
				},
			},
			{
				id:     StepPassword,
				field:  FieldPassword,
				prompt: textPrompt("🔑 Enter your password:"),
				accept: func(_ context.Context, _ State, in Input) (string, error) {
					return requireText(StepPassword, in.Text, 0)
				},
			},
		},
	}
}

func (e *Engine) creatingTask() *definition {
	return &definition{
		kind:      KindCreatingTask,
		protected: true,
		steps:     []step{titleStep("📝 Enter the task title:")},
	}
}

func (e *Engine) creatingDeal() *definition {
	return &definition{
		kind:      KindCreatingDeal,
		protected: true,
		steps: []step{
			{
				id:    StepFunnel,
				field: FieldFunnel,
				shape: shapeChoice,
				omit: func(ctx context.Context, _ State) (bool, error) {
					opts, err := e.lookup.Funnels(ctx)
					return len(opts) == 0, err
				},
				prompt: func(ctx context.Context, _ State) (Prompt, error) {
					opts, err := e.lookup.Funnels(ctx)
					return Prompt{Text: "📊 Choose a sales funnel:", Options: opts}, err
				},
				accept: func(ctx context.Context, _ State, in Input) (string, error) {
					opts, err := e.lookup.Funnels(ctx)
					if err != nil {
						return "", err
					}
					return choose(StepFunnel, opts, in)
				},
			},
			{
				id:    StepStage,
				field: FieldStage,
				shape: shapeChoice,
				omit: func(ctx context.Context, st State) (bool, error) {
					if st.Get(FieldFunnel) == "" {
						return true, nil
					}
					opts, err := e.lookup.Stages(ctx, st.Get(FieldFunnel))
					return len(opts) == 0, err
				},
				prompt: func(ctx context.Context, st State) (Prompt, error) {
					opts, err := e.lookup.Stages(ctx, st.Get(FieldFunnel))
					return Prompt{Text: "📍 Choose a stage:", Options: opts}, err
				},
				accept: func(ctx context.Context, st State, in Input) (string, error) {
					opts, err := e.lookup.Stages(ctx, st.Get(FieldFunnel))
					if err != nil {
						return "", err
					}
					return choose(StepStage, opts, in)
				},
			},
			titleStep("📝 Enter the deal title:"),
			{
				id:        StepDescription,
				field:     FieldDescription,
				skippable: true,
				prompt:    textPrompt("📄 Enter a description, or send \"-\" to skip:"),
				accept: func(_ context.Context, _ State, in Input) (string, error) {
					text := strings.TrimSpace(in.Text)
					if in.Skip || text == SkipSentinel {
						return "", nil
					}
					return text, nil
				},
			},
		},
	}
}

func (e *Engine) taskFromMessage() *definition {
	return &definition{
		kind:      KindTaskFromMessage,
		protected: true,
		steps: []step{
			{
				id:    StepTitle,
				field: FieldTitle,
				prompt: func(_ context.Context, st State) (Prompt, error) {
					return Prompt{Text: fmt.Sprintf("📝 New task from the message:\n\n%s\n\nEnter the task title:", st.Get(FieldBody))}, nil
				},
				accept: func(_ context.Context, _ State, in Input) (string, error) {
					return requireText(StepTitle, in.Text, MaxTitleLen)
				},
			},
			{
				id:     StepDueDate,
				field:  FieldDueDate,
				prompt: textPrompt("📅 Enter the due date as DD.MM.YYYY, or \"-\" for today:"),
				accept: func(_ context.Context, _ State, in Input) (string, error) {
					return ParseDueDate(in.Text, e.opts.Today())
				},
			},
			{
				id:    StepAssignee,
				field: FieldAssignee,
				shape: shapeChoice,
				prompt: func(ctx context.Context, _ State) (Prompt, error) {
					opts, err := e.lookup.Assignees(ctx, e.opts.AssigneeLimit)
					if err != nil {
						return Prompt{}, err
					}
					if len(opts) == 0 {
						return Prompt{Text: "👤 No active users to assign. Cancel and try again later."}, nil
					}
					return Prompt{Text: "👤 Choose the assignee:", Options: opts}, nil
				},
				accept: func(ctx context.Context, _ State, in Input) (string, error) {
					opts, err := e.lookup.Assignees(ctx, e.opts.AssigneeLimit)
					if err != nil {
						return "", err
					}
					return choose(StepAssignee, opts, in)
				},
			},
		},
	}
}

func (e *Engine) settingGroupID() *definition {
	return &definition{
		kind:      KindSettingGroupID,
		protected: true,
		steps: []step{
			{
				id:     StepChatID,
				field:  FieldChatID,
				prompt: textPrompt("💬 Enter the group chat id.\nSend /group_id in the group to find it."),
				accept: func(_ context.Context, _ State, in Input) (string, error) {
					id, err := ParseChatID(in.Text)
					if err != nil {
						return "", err
					}
					return fmt.Sprint(id), nil
				},
			},
		},
	}
}
