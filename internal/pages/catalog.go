package pages

import (
	"context"
	"encoding/json"
	"fmt"
	"html/template"
	"sort"

	"github.com/EtimGeorge/NexusAcademy-project/internal/model"
	"github.com/EtimGeorge/NexusAcademy-project/internal/navigation"
	"github.com/EtimGeorge/NexusAcademy-project/internal/paystack"
)

const (
	homeFeaturedCourses = 3
	homeLatestPosts     = 3
)

type catalogPages struct {
	r    *renderer
	deps Deps
}

func (p *catalogPages) home(ctx context.Context, _ navigation.Params) (template.HTML, error) {
	courses, err := p.deps.Courses.ListCourses(ctx, "")
	if err != nil {
		return "", fmt.Errorf("failed to load featured courses: %w", err)
	}
	if len(courses) > homeFeaturedCourses {
		courses = courses[:homeFeaturedCourses]
	}

	posts, err := p.deps.Blog.ListPosts(ctx, homeLatestPosts)
	if err != nil {
		return "", fmt.Errorf("failed to load latest posts: %w", err)
	}

	return p.r.execute(ctx, "home", struct {
		Courses []model.Course
		Posts   []model.BlogPost
	}{courses, posts})
}

func (p *catalogPages) courses(ctx context.Context, _ navigation.Params) (template.HTML, error) {
	courses, err := p.deps.Courses.ListCourses(ctx, "")
	if err != nil {
		return "", fmt.Errorf("failed to load courses: %w", err)
	}

	return p.r.execute(ctx, "courses", struct {
		Courses    []model.Course
		Categories []string
	}{courses, categoriesOf(courses)})
}

// categoriesOf はコースのカテゴリを重複なしで名前順に返す。
func categoriesOf(courses []model.Course) []string {
	seen := make(map[string]bool)
	var out []string
	for _, c := range courses {
		if c.Category == "" || seen[c.Category] {
			continue
		}
		seen[c.Category] = true
		out = append(out, c.Category)
	}
	sort.Strings(out)
	return out
}

// enrollAction はコース詳細画面の申し込みボタンの状態。
type enrollAction struct {
	// LoggedIn がfalseの場合はサインアップへ誘導する。
	LoggedIn bool
	// Enrolled がtrueの場合はコースプレイヤーへのリンクを表示する。
	Enrolled bool
	// Checkout はインラインチェックアウトに渡すJSON。
	Checkout  string
	PublicKey string
}

func (p *catalogPages) courseDetail(ctx context.Context, params navigation.Params) (template.HTML, error) {
	courseID := params[navigation.ParamID]

	course, err := p.deps.Courses.GetCourse(ctx, courseID)
	if isNotFound(err, model.ErrCodeCourseNotFound) {
		return p.r.notFound(ctx, "Course not found.", "#/courses", "Browse courses")
	}
	if err != nil {
		return "", fmt.Errorf("failed to load course %s: %w", courseID, err)
	}

	lessons, err := p.deps.Courses.ListLessons(ctx, courseID)
	if err != nil {
		return "", fmt.Errorf("failed to load curriculum of %s: %w", courseID, err)
	}

	action, err := p.enrollAction(ctx, course)
	if err != nil {
		return "", err
	}

	return p.r.execute(ctx, "course-detail", struct {
		Course  *model.Course
		Lessons []model.Lesson
		Action  enrollAction
	}{course, lessons, action})
}

func (p *catalogPages) enrollAction(ctx context.Context, course *model.Course) (enrollAction, error) {
	user := navigation.UserFromContext(ctx)
	if user == nil {
		return enrollAction{}, nil
	}

	enrolled, err := p.deps.Enrollments.IsEnrolled(ctx, user.ID, course.ID)
	if err != nil {
		return enrollAction{}, fmt.Errorf("failed to check enrollment: %w", err)
	}
	if enrolled {
		return enrollAction{LoggedIn: true, Enrolled: true}, nil
	}

	checkout := paystack.NewCheckout(user.Email, user.ID, course.ID, course.Title, course.Price, p.deps.Now())
	b, err := json.Marshal(checkout)
	if err != nil {
		return enrollAction{}, fmt.Errorf("failed to encode checkout: %w", err)
	}
	return enrollAction{
		LoggedIn:  true,
		Checkout:  string(b),
		PublicKey: p.deps.PaystackPublicKey,
	}, nil
}
