package auth

import "context"

type contextKey string

const subjectKey contextKey = "cycletrack-auth-subject"

// WithSubject stores the decoded token subject on the context.
func WithSubject(ctx context.Context, subject string) context.Context {
	return context.WithValue(ctx, subjectKey, subject)
}

// FromContext retrieves the subject stored by WithSubject.
func FromContext(ctx context.Context) (string, bool) {
	subject, ok := ctx.Value(subjectKey).(string)
	return subject, ok
}
