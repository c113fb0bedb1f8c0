package main

const baseTemplate = `{{define "base"}}<!DOCTYPE html>
<html>
<head>
	<title>Exam Practice</title>
	<style>
		body { font-family: sans-serif; max-width: 780px; margin: 2em auto; padding: 0 1em; }
		.option { display: block; margin: 0.4em 0; }
		.correct { color: #2e7d32; }
		.incorrect { color: #c62828; }
		.explanation { background: #f5f5f5; padding: 0.8em; margin-top: 0.8em; white-space: pre-wrap; }
		.citations { color: #555; font-size: 0.9em; }
		table { border-collapse: collapse; width: 100%; }
		td, th { border: 1px solid #ddd; padding: 0.4em 0.6em; text-align: left; }
	</style>
</head>
<body>
{{template "content" .}}
</body>
</html>{{end}}`

const homeTemplate = `{{define "content"}}
<h1>Exam Practice</h1>
{{if .Chapters}}
<table>
	<tr><th>Chapter</th><th>Questions</th><th></th></tr>
	{{range .Chapters}}
	<tr>
		<td>{{.Name}}</td>
		<td>{{.QuestionCount}}</td>
		<td>
			{{if gt .QuestionCount 0}}
			<form method="POST" action="/practice/start">
				<input type="hidden" name="chapter_id" value="{{.ID}}">
				<button type="submit">Practice</button>
			</form>
			{{end}}
		</td>
	</tr>
	{{end}}
</table>
{{else}}
<p>No chapters ingested yet. Run chapterindex and examgen first.</p>
{{end}}
{{end}}`

const questionTemplate = `{{define "content"}}
<h2>Question {{.Num}} of {{.Total}}</h2>
<p>{{.Question.Question}}</p>
<form method="POST">
	{{$options := .Question.Options}}
	{{range .OptionKeys}}
	<label class="option">
		<input type="radio" name="answer" value="{{.}}" required>
		{{.}}) {{index $options .}}
	</label>
	{{end}}
	<button type="submit">Submit</button>
</form>
{{end}}`

const resultsTemplate = `{{define "content"}}
<h1>Results</h1>
<p>Score: {{.Correct}}/{{.Total}} ({{printf "%.1f" .Percentage}}%)</p>
{{range .Review}}
<hr>
<p>{{.Question.Question}}</p>
{{if .IsCorrect}}
<p class="correct">Correct: {{.UserAnswer}}</p>
{{else}}
<p class="incorrect">Your answer: {{.UserAnswer}}, correct answer: {{.Question.CorrectAnswer}}</p>
{{end}}
<div class="explanation">{{.Question.Explanation}}</div>
{{if .Question.Citations}}
<p class="citations">{{range .Question.Citations}}{{.}}<br>{{end}}</p>
{{end}}
{{end}}
<p><a href="/">Back to chapters</a></p>
{{end}}`
