// Package experiments fetches A/B experiment group assignments for the
// signed-in user.
//
// Client performs the HTTP call: a GET with a bearer token and an
// X-Request-ID header, answered by a JSON object such as
//
//	{"swap_button_color": 2, "onboarding_v3": 0}
//
// Service caches the assignments for the process. It is an observer: Start
// begins fetching, Stop cancels. A token change through SetToken cancels the
// in-flight request and starts a new one, so a slow response for a previous
// identity never overwrites newer state.
//
//	client, _ := experiments.NewClient(url, experiments.WithRateLimit(1, 3))
//	svc := experiments.NewService(client)
//	svc.Start()
//	defer svc.Stop()
//	svc.SetToken(ctx, token)
//	group, ok := svc.Group("swap_button_color")
package experiments
