package groupdelivery

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang/mock/gomock"
	"github.com/google/go-cmp/cmp"
	"github.com/google/uuid"

	"github.com/go-petr/splitfx/internal/domain"
	"github.com/go-petr/splitfx/pkg/coercepkg"
	"github.com/go-petr/splitfx/pkg/currencypkg"
	"github.com/go-petr/splitfx/pkg/errorspkg"
	"github.com/go-petr/splitfx/pkg/web"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func newRouter(service Service) *gin.Engine {
	h := NewHandler(service)

	r := gin.New()
	r.POST("/groups", h.Create)
	r.POST("/groups/join", h.Join)
	r.GET("/groups/:id", h.Get)
	r.DELETE("/groups/:id", h.Delete)
	r.POST("/groups/:id/recover", h.Recover)
	r.GET("/groups/:id/members", h.ListMembers)
	r.DELETE("/groups/:id/members/:memberID", h.Leave)

	return r
}

func randomGroup() domain.Group {
	return domain.Group{
		ID:         uuid.New(),
		Name:       "Trip",
		Currency:   currencypkg.CAD,
		InviteCode: "ABCD2345",
		CreatedAt:  time.Now().Truncate(time.Second).UTC(),
	}
}

func serve(t *testing.T, service Service, method, url string, body any) (*httptest.ResponseRecorder, web.Response, json.RawMessage) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("Encoding request body error: %v", err)
		}
	}

	req := httptest.NewRequest(method, url, &buf)
	recorder := httptest.NewRecorder()
	newRouter(service).ServeHTTP(recorder, req)

	var data json.RawMessage

	res := web.Response{Data: &data}
	if err := json.NewDecoder(bytes.NewReader(recorder.Body.Bytes())).Decode(&res); err != nil {
		t.Fatalf("Decoding response body error: %v", err)
	}

	return recorder, res, data
}

func TestCreate(t *testing.T) {
	group := randomGroup()
	admin := domain.Member{ID: uuid.New(), GroupID: group.ID, DisplayName: "Ann", Role: domain.RoleAdmin, JoinedAt: group.CreatedAt}
	warnings := coercepkg.Warnings{{Field: "currency", Rule: coercepkg.RuleCurrency, From: "RUB", To: currencypkg.Fallback}}

	testCases := []struct {
		name           string
		body           gin.H
		buildStubs     func(service *MockService)
		wantStatusCode int
		wantError      string
		wantWarnings   coercepkg.Warnings
	}{
		{
			name: "Created",
			body: gin.H{"name": "Trip", "currency": "RUB", "displayName": "Ann"},
			buildStubs: func(service *MockService) {
				service.EXPECT().
					Create(gomock.Any(), gomock.Eq("Trip"), gomock.Eq("RUB"), gomock.Eq("Ann")).
					Times(1).
					Return(group, admin, warnings, nil)
			},
			wantStatusCode: http.StatusCreated,
			wantWarnings:   warnings,
		},
		{
			name: "NoDisplayName",
			body: gin.H{"name": "Trip"},
			buildStubs: func(service *MockService) {
				service.EXPECT().Create(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			wantStatusCode: http.StatusBadRequest,
			wantError:      "DisplayName field is required",
		},
		{
			name: "InternalError",
			body: gin.H{"displayName": "Ann"},
			buildStubs: func(service *MockService) {
				service.EXPECT().
					Create(gomock.Any(), gomock.Eq(""), gomock.Eq(""), gomock.Eq("Ann")).
					Times(1).
					Return(domain.Group{}, domain.Member{}, nil, errorspkg.ErrInternal)
			},
			wantStatusCode: http.StatusInternalServerError,
			wantError:      errorspkg.ErrInternal.Error(),
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			service := NewMockService(ctrl)
			tc.buildStubs(service)

			recorder, res, data := serve(t, service, http.MethodPost, "/groups", tc.body)

			if got := recorder.Code; got != tc.wantStatusCode {
				t.Errorf("Status code: got %v, want %v", got, tc.wantStatusCode)
			}

			if res.Error != tc.wantError {
				t.Errorf(`res.Error=%q, want %q`, res.Error, tc.wantError)
			}

			if diff := cmp.Diff(tc.wantWarnings, res.Warnings); diff != "" {
				t.Errorf("res.Warnings mismatch (-want +got):\n%s", diff)
			}

			if tc.wantStatusCode != http.StatusCreated {
				return
			}

			var got membershipData
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("Decoding data error: %v", err)
			}

			if diff := cmp.Diff(membershipData{Group: group, Member: admin}, got); diff != "" {
				t.Errorf("res.Data mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestJoin(t *testing.T) {
	group := randomGroup()
	member := domain.Member{ID: uuid.New(), GroupID: group.ID, DisplayName: "Bob", Role: domain.RoleMember}

	testCases := []struct {
		name           string
		body           gin.H
		buildStubs     func(service *MockService)
		wantStatusCode int
		wantError      string
	}{
		{
			name: "OK",
			body: gin.H{"inviteCode": "abcd2345", "displayName": "Bob"},
			buildStubs: func(service *MockService) {
				service.EXPECT().
					Join(gomock.Any(), gomock.Eq("abcd2345"), gomock.Eq("Bob")).
					Times(1).
					Return(group, member, nil)
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name: "NoInviteCode",
			body: gin.H{"displayName": "Bob"},
			buildStubs: func(service *MockService) {
				service.EXPECT().Join(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			wantStatusCode: http.StatusBadRequest,
			wantError:      "InviteCode field is required",
		},
		{
			name: "UnknownCode",
			body: gin.H{"inviteCode": "ZZZZ9999", "displayName": "Bob"},
			buildStubs: func(service *MockService) {
				service.EXPECT().
					Join(gomock.Any(), gomock.Any(), gomock.Any()).
					Times(1).
					Return(domain.Group{}, domain.Member{}, domain.ErrInviteCodeNotFound)
			},
			wantStatusCode: http.StatusNotFound,
			wantError:      domain.ErrInviteCodeNotFound.Error(),
		},
		{
			name: "GroupDeleted",
			body: gin.H{"inviteCode": "ABCD2345", "displayName": "Bob"},
			buildStubs: func(service *MockService) {
				service.EXPECT().
					Join(gomock.Any(), gomock.Any(), gomock.Any()).
					Times(1).
					Return(domain.Group{}, domain.Member{}, domain.ErrGroupDeleted)
			},
			wantStatusCode: http.StatusConflict,
			wantError:      domain.ErrGroupDeleted.Error(),
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			service := NewMockService(ctrl)
			tc.buildStubs(service)

			recorder, res, data := serve(t, service, http.MethodPost, "/groups/join", tc.body)

			if got := recorder.Code; got != tc.wantStatusCode {
				t.Errorf("Status code: got %v, want %v", got, tc.wantStatusCode)
			}

			if res.Error != tc.wantError {
				t.Errorf(`res.Error=%q, want %q`, res.Error, tc.wantError)
			}

			if tc.wantStatusCode != http.StatusOK {
				return
			}

			var got membershipData
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("Decoding data error: %v", err)
			}

			if diff := cmp.Diff(membershipData{Group: group, Member: member}, got); diff != "" {
				t.Errorf("res.Data mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestGroupActions(t *testing.T) {
	group := randomGroup()
	deletedAt := group.CreatedAt.Add(time.Hour)
	recoverUntil := deletedAt.Add(7 * 24 * time.Hour)
	deleted := group
	deleted.DeletedAt, deleted.RecoverUntil = &deletedAt, &recoverUntil

	testCases := []struct {
		name           string
		method         string
		url            string
		buildStubs     func(service *MockService)
		wantStatusCode int
		wantError      string
		wantGroup      domain.Group
	}{
		{
			name:   "GetOK",
			method: http.MethodGet,
			url:    "/groups/" + group.ID.String(),
			buildStubs: func(service *MockService) {
				service.EXPECT().Get(gomock.Any(), gomock.Eq(group.ID)).Times(1).Return(group, nil)
			},
			wantStatusCode: http.StatusOK,
			wantGroup:      group,
		},
		{
			name:   "GetInvalidID",
			method: http.MethodGet,
			url:    "/groups/42",
			buildStubs: func(service *MockService) {
				service.EXPECT().Get(gomock.Any(), gomock.Any()).Times(0)
			},
			wantStatusCode: http.StatusBadRequest,
			wantError:      "GroupID must be a valid UUID",
		},
		{
			name:   "GetNotFound",
			method: http.MethodGet,
			url:    "/groups/" + group.ID.String(),
			buildStubs: func(service *MockService) {
				service.EXPECT().Get(gomock.Any(), gomock.Any()).Times(1).Return(domain.Group{}, domain.ErrGroupNotFound)
			},
			wantStatusCode: http.StatusNotFound,
			wantError:      domain.ErrGroupNotFound.Error(),
		},
		{
			name:   "DeleteOK",
			method: http.MethodDelete,
			url:    "/groups/" + group.ID.String(),
			buildStubs: func(service *MockService) {
				service.EXPECT().Delete(gomock.Any(), gomock.Eq(group.ID)).Times(1).Return(deleted, nil)
			},
			wantStatusCode: http.StatusOK,
			wantGroup:      deleted,
		},
		{
			name:   "DeleteTwice",
			method: http.MethodDelete,
			url:    "/groups/" + group.ID.String(),
			buildStubs: func(service *MockService) {
				service.EXPECT().Delete(gomock.Any(), gomock.Any()).Times(1).Return(domain.Group{}, domain.ErrGroupDeleted)
			},
			wantStatusCode: http.StatusConflict,
			wantError:      domain.ErrGroupDeleted.Error(),
		},
		{
			name:   "RecoverOK",
			method: http.MethodPost,
			url:    fmt.Sprintf("/groups/%s/recover", group.ID),
			buildStubs: func(service *MockService) {
				service.EXPECT().Recover(gomock.Any(), gomock.Eq(group.ID)).Times(1).Return(group, nil)
			},
			wantStatusCode: http.StatusOK,
			wantGroup:      group,
		},
		{
			name:   "RecoverNotDeleted",
			method: http.MethodPost,
			url:    fmt.Sprintf("/groups/%s/recover", group.ID),
			buildStubs: func(service *MockService) {
				service.EXPECT().Recover(gomock.Any(), gomock.Any()).Times(1).Return(domain.Group{}, domain.ErrGroupNotDeleted)
			},
			wantStatusCode: http.StatusConflict,
			wantError:      domain.ErrGroupNotDeleted.Error(),
		},
		{
			name:   "RecoverExpired",
			method: http.MethodPost,
			url:    fmt.Sprintf("/groups/%s/recover", group.ID),
			buildStubs: func(service *MockService) {
				service.EXPECT().Recover(gomock.Any(), gomock.Any()).Times(1).Return(domain.Group{}, domain.ErrRecoveryExpired)
			},
			wantStatusCode: http.StatusGone,
			wantError:      domain.ErrRecoveryExpired.Error(),
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			service := NewMockService(ctrl)
			tc.buildStubs(service)

			recorder, res, data := serve(t, service, tc.method, tc.url, nil)

			if got := recorder.Code; got != tc.wantStatusCode {
				t.Errorf("Status code: got %v, want %v", got, tc.wantStatusCode)
			}

			if res.Error != tc.wantError {
				t.Errorf(`res.Error=%q, want %q`, res.Error, tc.wantError)
			}

			if tc.wantStatusCode != http.StatusOK {
				return
			}

			var got domain.Group
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("Decoding data error: %v", err)
			}

			if diff := cmp.Diff(tc.wantGroup, got); diff != "" {
				t.Errorf("res.Data mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestListMembers(t *testing.T) {
	groupID := uuid.New()
	members := []domain.Member{
		{ID: uuid.New(), GroupID: groupID, DisplayName: "Ann", Role: domain.RoleAdmin},
		{ID: uuid.New(), GroupID: groupID, DisplayName: "Bob", Role: domain.RoleMember},
	}

	ctrl := gomock.NewController(t)
	service := NewMockService(ctrl)
	service.EXPECT().ListMembers(gomock.Any(), gomock.Eq(groupID)).Times(1).Return(members, nil)

	recorder, _, data := serve(t, service, http.MethodGet, fmt.Sprintf("/groups/%s/members", groupID), nil)
	if recorder.Code != http.StatusOK {
		t.Fatalf("Status code: got %v, want %v", recorder.Code, http.StatusOK)
	}

	var got membersData
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Decoding data error: %v", err)
	}

	if diff := cmp.Diff(members, got.Members); diff != "" {
		t.Errorf("res.Data mismatch (-want +got):\n%s", diff)
	}
}

func TestLeave(t *testing.T) {
	groupID, memberID := uuid.New(), uuid.New()
	leftAt := time.Now().Truncate(time.Second).UTC()
	member := domain.Member{ID: memberID, GroupID: groupID, DisplayName: "Bob", Role: domain.RoleMember, LeftAt: &leftAt}

	testCases := []struct {
		name           string
		url            string
		buildStubs     func(service *MockService)
		wantStatusCode int
		wantError      string
	}{
		{
			name: "OK",
			url:  fmt.Sprintf("/groups/%s/members/%s", groupID, memberID),
			buildStubs: func(service *MockService) {
				service.EXPECT().Leave(gomock.Any(), gomock.Eq(groupID), gomock.Eq(memberID)).Times(1).Return(member, nil)
			},
			wantStatusCode: http.StatusOK,
		},
		{
			name: "InvalidMemberID",
			url:  fmt.Sprintf("/groups/%s/members/bob", groupID),
			buildStubs: func(service *MockService) {
				service.EXPECT().Leave(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			},
			wantStatusCode: http.StatusBadRequest,
			wantError:      "MemberID must be a valid UUID",
		},
		{
			name: "AlreadyLeft",
			url:  fmt.Sprintf("/groups/%s/members/%s", groupID, memberID),
			buildStubs: func(service *MockService) {
				service.EXPECT().Leave(gomock.Any(), gomock.Any(), gomock.Any()).Times(1).Return(domain.Member{}, domain.ErrMemberLeft)
			},
			wantStatusCode: http.StatusConflict,
			wantError:      domain.ErrMemberLeft.Error(),
		},
		{
			name: "MemberNotFound",
			url:  fmt.Sprintf("/groups/%s/members/%s", groupID, memberID),
			buildStubs: func(service *MockService) {
				service.EXPECT().Leave(gomock.Any(), gomock.Any(), gomock.Any()).Times(1).Return(domain.Member{}, domain.ErrMemberNotFound)
			},
			wantStatusCode: http.StatusNotFound,
			wantError:      domain.ErrMemberNotFound.Error(),
		},
	}

	for i := range testCases {
		tc := testCases[i]

		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ctrl := gomock.NewController(t)
			service := NewMockService(ctrl)
			tc.buildStubs(service)

			recorder, res, data := serve(t, service, http.MethodDelete, tc.url, nil)

			if got := recorder.Code; got != tc.wantStatusCode {
				t.Errorf("Status code: got %v, want %v", got, tc.wantStatusCode)
			}

			if res.Error != tc.wantError {
				t.Errorf(`res.Error=%q, want %q`, res.Error, tc.wantError)
			}

			if tc.wantStatusCode != http.StatusOK {
				return
			}

			var got domain.Member
			if err := json.Unmarshal(data, &got); err != nil {
				t.Fatalf("Decoding data error: %v", err)
			}

			if diff := cmp.Diff(member, got); diff != "" {
				t.Errorf("res.Data mismatch (-want +got):\n%s", diff)
			}
		})
	}
}
