package main

import (
	"encoding/gob"
	"flag"
	"fmt"
	"html/template"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"

	"examgen"
)

type Server struct {
	store     *examgen.Store
	sessions  *sessions.CookieStore
	templates map[string]*template.Template
}

// PracticeSession tracks one user's pass through a chapter's question bank.
type PracticeSession struct {
	ChapterID   int      `json:"chapter_id"`
	QuestionIDs []int    `json:"question_ids"`
	Current     int      `json:"current"`
	Correct     int      `json:"correct"`
	Answers     []string `json:"answers"`
	Completed   bool     `json:"completed"`
}

func init() {
	gob.Register(PracticeSession{})
}

func main() {
	var (
		configPath = flag.String("config", "examgen.toml", "Path to TOML config file")
		verbose    = flag.Bool("verbose", false, "Enable verbose debugging output")
	)
	flag.Parse()

	examgen.SetVerbose(*verbose)

	cfg, err := examgen.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	store, err := examgen.OpenStore(filepath.Join(cfg.Paths.DataDir, "examgen.db"))
	if err != nil {
		log.Fatalf("Failed to open store: %v", err)
	}
	defer store.Close()

	server := &Server{
		store:     store,
		sessions:  sessions.NewCookieStore(sessionKey()),
		templates: loadTemplates(),
	}

	http.HandleFunc("/", server.handleHome)
	http.HandleFunc("/practice/start", server.handleStart)
	http.HandleFunc("/practice/", server.handlePractice)

	port := os.Getenv("PORT")
	if port == "" {
		port = "8180"
	}

	log.Printf("Starting practice server on port %s", port)
	log.Fatal(http.ListenAndServe(":"+port, nil))
}

// sessionKey returns the cookie signing key: SESSION_KEY when set, otherwise
// a random per-process key. An ephemeral key invalidates sessions on restart;
// set SESSION_KEY to keep them.
func sessionKey() []byte {
	if key := os.Getenv("SESSION_KEY"); key != "" {
		return []byte(key)
	}
	key := securecookie.GenerateRandomKey(32)
	if key == nil {
		log.Fatal("Failed to generate a session key; set SESSION_KEY")
	}
	log.Print("SESSION_KEY not set, using an ephemeral session key")
	return key
}

func (s *Server) handleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	chapters, err := s.store.Chapters()
	if err != nil {
		log.Printf("Failed to list chapters: %v", err)
		http.Error(w, "Failed to list chapters", http.StatusInternalServerError)
		return
	}

	type chapterView struct {
		examgen.ChapterRecord
		QuestionCount int
	}
	views := make([]chapterView, 0, len(chapters))
	for _, c := range chapters {
		questions, err := s.store.QuestionsByChapter(c.ID)
		if err != nil {
			log.Printf("Failed to count questions for chapter %d: %v", c.ID, err)
			continue
		}
		views = append(views, chapterView{ChapterRecord: c, QuestionCount: len(questions)})
	}

	s.render(w, "home", map[string]interface{}{"Chapters": views})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}

	chapterID, err := strconv.Atoi(r.FormValue("chapter_id"))
	if err != nil || chapterID <= 0 {
		http.Error(w, "Invalid chapter", http.StatusBadRequest)
		return
	}

	questions, err := s.store.QuestionsByChapter(chapterID)
	if err != nil {
		log.Printf("Failed to load questions: %v", err)
		http.Error(w, "Failed to load questions", http.StatusInternalServerError)
		return
	}
	if len(questions) == 0 {
		http.Error(w, "No questions for this chapter yet", http.StatusNotFound)
		return
	}

	ids := make([]int, len(questions))
	for i, q := range questions {
		ids[i] = q.ID
	}

	session, _ := s.sessions.Get(r, "practice-session")
	session.Values["practice"] = PracticeSession{
		ChapterID:   chapterID,
		QuestionIDs: ids,
		Current:     1,
		Answers:     make([]string, len(ids)),
	}
	if err := session.Save(r, w); err != nil {
		log.Printf("Session save error: %v", err)
	}

	http.Redirect(w, r, "/practice/1", http.StatusSeeOther)
}

func (s *Server) handlePractice(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/practice/")

	if path == "results" {
		s.handleResults(w, r)
		return
	}

	num, err := strconv.Atoi(path)
	if err != nil || num < 1 {
		http.NotFound(w, r)
		return
	}
	s.handleQuestion(w, r, num)
}

func (s *Server) handleQuestion(w http.ResponseWriter, r *http.Request, num int) {
	session, _ := s.sessions.Get(r, "practice-session")
	practice, ok := session.Values["practice"].(PracticeSession)
	if !ok || num > len(practice.QuestionIDs) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	question, err := s.store.QuestionByID(practice.QuestionIDs[num-1])
	if err != nil || question == nil {
		http.NotFound(w, r)
		return
	}

	if r.Method == "GET" {
		s.render(w, "question", map[string]interface{}{
			"Num":        num,
			"Total":      len(practice.QuestionIDs),
			"Question":   question,
			"OptionKeys": examgen.OptionKeys,
		})
		return
	}

	if r.Method != "POST" {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, "Failed to parse form", http.StatusBadRequest)
		return
	}

	answer := strings.ToUpper(strings.TrimSpace(r.FormValue("answer")))
	if _, ok := question.Options[answer]; !ok {
		http.Error(w, "Invalid answer", http.StatusBadRequest)
		return
	}

	isCorrect := answer == question.CorrectAnswer
	if isCorrect {
		practice.Correct++
	}
	practice.Answers[num-1] = answer

	if _, err := s.store.AppendAttempt(examgen.Attempt{
		QuestionID:    question.ID,
		ChapterID:     question.ChapterID,
		UserAnswer:    answer,
		CorrectAnswer: question.CorrectAnswer,
		IsCorrect:     isCorrect,
	}); err != nil {
		log.Printf("Failed to record attempt: %v", err)
	}

	next := "/practice/results"
	if num < len(practice.QuestionIDs) {
		practice.Current = num + 1
		next = fmt.Sprintf("/practice/%d", num+1)
	} else {
		practice.Completed = true
	}

	session.Values["practice"] = practice
	if err := session.Save(r, w); err != nil {
		log.Printf("Session save error: %v", err)
	}

	http.Redirect(w, r, next, http.StatusSeeOther)
}

func (s *Server) handleResults(w http.ResponseWriter, r *http.Request) {
	session, _ := s.sessions.Get(r, "practice-session")
	practice, ok := session.Values["practice"].(PracticeSession)
	if !ok {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	type reviewItem struct {
		Question   *examgen.Question
		UserAnswer string
		IsCorrect  bool
	}
	review := make([]reviewItem, 0, len(practice.QuestionIDs))
	for i, id := range practice.QuestionIDs {
		q, err := s.store.QuestionByID(id)
		if err != nil || q == nil {
			continue
		}
		answer := practice.Answers[i]
		review = append(review, reviewItem{
			Question:   q,
			UserAnswer: answer,
			IsCorrect:  answer == q.CorrectAnswer,
		})
	}

	percentage := 0.0
	if len(practice.QuestionIDs) > 0 {
		percentage = float64(practice.Correct) / float64(len(practice.QuestionIDs)) * 100
	}

	s.render(w, "results", map[string]interface{}{
		"Correct":    practice.Correct,
		"Total":      len(practice.QuestionIDs),
		"Percentage": percentage,
		"Review":     review,
	})
}

func (s *Server) render(w http.ResponseWriter, name string, data interface{}) {
	if err := s.templates[name].ExecuteTemplate(w, "base", data); err != nil {
		log.Printf("Template error in %s: %v", name, err)
		http.Error(w, "Template error", http.StatusInternalServerError)
	}
}

func loadTemplates() map[string]*template.Template {
	funcMap := template.FuncMap{
		"printf": fmt.Sprintf,
	}
	templates := make(map[string]*template.Template)
	for name, body := range map[string]string{
		"home":     homeTemplate,
		"question": questionTemplate,
		"results":  resultsTemplate,
	} {
		templates[name] = template.Must(template.New(name).Funcs(funcMap).Parse(baseTemplate + body))
	}
	return templates
}
