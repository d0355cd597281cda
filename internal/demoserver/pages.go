package demoserver

// PageDefinition is one deterministic fixture page. The markup carries no
// timestamps, counters or random IDs so repeated captures of the same page
// hash identically.
type PageDefinition struct {
	Path  string
	Title string
	HTML  string
}

// GetAllPages returns the fixture pages served for suite runs and examples.
// Pages under /static/passing render the state their questions expect; pages
// under /static/failing render a deliberately broken state.
func GetAllPages() []PageDefinition {
	return []PageDefinition{
		{
			Path:  "/static/passing/simple_button",
			Title: "Simple Button",
			HTML: `<!DOCTYPE html>
<html>
<head><title>Simple Button</title>
<style>
body { margin: 0; height: 100vh; display: flex; align-items: center; justify-content: center; background: #ffffff; }
button { background: #1a73e8; color: #ffffff; border: none; padding: 14px 40px; font-size: 18px; border-radius: 4px; }
</style>
</head>
<body>
<button type="submit">Submit</button>
</body>
</html>`,
		},
		{
			Path:  "/static/passing/login_form",
			Title: "Sign In",
			HTML: `<!DOCTYPE html>
<html>
<head><title>Sign In</title>
<style>
body { font-family: sans-serif; background: #f5f5f5; display: flex; justify-content: center; padding-top: 80px; }
form { background: #ffffff; padding: 32px; border-radius: 8px; width: 320px; }
label { display: block; margin-top: 16px; font-size: 14px; }
input { width: 100%; padding: 8px; margin-top: 4px; box-sizing: border-box; }
button { margin-top: 24px; width: 100%; padding: 10px; background: #0b8043; color: #ffffff; border: none; }
</style>
</head>
<body>
<form action="/login" method="post">
  <h1>Sign In</h1>
  <label>Username<input type="text" name="username"></label>
  <label>Password<input type="password" name="password"></label>
  <button type="submit">Log in</button>
</form>
</body>
</html>`,
		},
		{
			Path:  "/static/failing/error_banner",
			Title: "Dashboard",
			HTML: `<!DOCTYPE html>
<html>
<head><title>Dashboard</title>
<style>
body { font-family: sans-serif; margin: 0; }
.banner { background: #d93025; color: #ffffff; padding: 16px; font-size: 16px; }
main { padding: 24px; }
</style>
</head>
<body>
<div class="banner" role="alert">Error: could not load your data. Try again later.</div>
<main><h1>Dashboard</h1><p>Your recent activity will appear here.</p></main>
</body>
</html>`,
		},
		{
			Path:  "/static/failing/broken_animation",
			Title: "Loading",
			HTML: `<!DOCTYPE html>
<html>
<head><title>Loading</title>
<style>
body { margin: 0; height: 100vh; display: flex; flex-direction: column; align-items: center; justify-content: center; }
button { background: #0b8043; color: #ffffff; border: none; padding: 12px 32px; font-size: 16px; }
.spinner {
  margin-top: 32px; width: 48px; height: 48px;
  border: 6px solid #e0e0e0; border-top-color: #1a73e8; border-radius: 50%;
  animation: spin 1s linear infinite;
  /* frozen mid-rotation: the spinner starts but never completes */
  animation-play-state: paused;
  transform: rotate(120deg);
}
@keyframes spin { to { transform: rotate(360deg); } }
</style>
</head>
<body>
<button>Click Me</button>
<div class="spinner"></div>
</body>
</html>`,
		},
	}
}
