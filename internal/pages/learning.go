package pages

import (
	"context"
	"errors"
	"fmt"
	"html/template"
	"sync"

	"github.com/EtimGeorge/NexusAcademy-project/internal/model"
	"github.com/EtimGeorge/NexusAcademy-project/internal/navigation"
)

type learningPages struct {
	r    *renderer
	deps Deps
}

func (p *learningPages) dashboard(ctx context.Context, _ navigation.Params) (template.HTML, error) {
	user, err := currentUser(ctx)
	if err != nil {
		return "", err
	}

	profile, err := p.deps.Profiles.GetProfile(ctx, user.ID)
	if err != nil && !isNotFound(err, model.ErrCodeUserNotFound) {
		return "", fmt.Errorf("failed to load profile: %w", err)
	}

	courses, err := p.deps.Enrollments.ListEnrolledCourses(ctx, user.ID)
	if err != nil {
		return "", fmt.Errorf("failed to load enrolled courses: %w", err)
	}

	return p.r.execute(ctx, "dashboard", struct {
		Greeting string
		Courses  []model.Course
	}{greetingName(user, profile), courses})
}

// greetingName はダッシュボードの挨拶に使う名前を返す。
// 名、表示名、メールアドレスの順に最初の空でない値を使う。
func greetingName(user *navigation.User, profile *model.User) string {
	if profile != nil {
		if profile.FirstName != "" {
			return profile.FirstName
		}
		if profile.DisplayName != "" {
			return profile.DisplayName
		}
	}
	return user.Email
}

// coursePlayer はコースとレッスン一覧を並行に取得して描画する。
// 最初のレッスンを再生中として表示する。
func (p *learningPages) coursePlayer(ctx context.Context, params navigation.Params) (template.HTML, error) {
	courseID := params[navigation.ParamID]

	var (
		wg         sync.WaitGroup
		course     *model.Course
		lessons    []model.Lesson
		courseErr  error
		lessonsErr error
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		course, courseErr = p.deps.Courses.GetCourse(ctx, courseID)
	}()
	go func() {
		defer wg.Done()
		lessons, lessonsErr = p.deps.Courses.ListLessons(ctx, courseID)
	}()
	wg.Wait()

	if isNotFound(courseErr, model.ErrCodeCourseNotFound) {
		return p.r.notFound(ctx, "Course data could not be found.", "#/dashboard", "Back to dashboard")
	}
	if err := errors.Join(courseErr, lessonsErr); err != nil {
		return "", fmt.Errorf("failed to load course %s: %w", courseID, err)
	}

	var (
		current *model.Lesson
		body    template.HTML
	)
	if len(lessons) > 0 {
		current = &lessons[0]
		body = template.HTML(p.deps.Sanitizer.Sanitize(current.Content))
	}

	return p.r.execute(ctx, "course-player", struct {
		Course      *model.Course
		Lessons     []model.Lesson
		Current     *model.Lesson
		CurrentBody template.HTML
	}{course, lessons, current, body})
}
