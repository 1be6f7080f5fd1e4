package repositories

import (
	"testing"

	"chat-server/errors"

	"github.com/samber/lo"
	"github.com/stretchr/testify/require"
)

func Test_Create_User_Is_Readable_By_Email_And_Id(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t))

	id, err := repository.CreateUser("alice@example.com", "alice", "hashed")
	req.NoError(err)
	req.NotEmpty(id)

	byEmail, err := repository.GetUserByEmail("alice@example.com")
	req.NoError(err)
	req.Equal(id, byEmail.ID)
	req.Equal("alice", byEmail.Username)
	req.Equal("hashed", byEmail.PasswordHash)

	byID, err := repository.GetUserByID(id)
	req.NoError(err)
	req.Equal(byEmail, byID)
}

func Test_Create_User_Rejects_Duplicate_Email(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t))

	_, err := repository.CreateUser("alice@example.com", "alice", "hashed")
	req.NoError(err)

	_, err = repository.CreateUser("alice@example.com", "alice2", "hashed2")
	req.ErrorIs(err, errors.ErrUserAlreadyExists)
}

func Test_Get_Unknown_User_Returns_Not_Found(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t))

	_, err := repository.GetUserByEmail("ghost@example.com")
	req.ErrorIs(err, errors.ErrUserNotFound)

	_, err = repository.GetUserByID("no-such-id")
	req.ErrorIs(err, errors.ErrUserNotFound)
}

func Test_List_Users_Returns_Each_Account_Once(t *testing.T) {
	req := require.New(t)
	repository := NewUserRepository(openTestDB(t))

	_, err := repository.CreateUser("alice@example.com", "alice", "hashed")
	req.NoError(err)
	_, err = repository.CreateUser("bob@example.com", "bob", "hashed")
	req.NoError(err)

	users, err := repository.ListUsers()
	req.NoError(err)
	req.Len(users, 2)

	emails := lo.Map(users, func(u User, _ int) string { return u.Email })
	req.ElementsMatch([]string{"alice@example.com", "bob@example.com"}, emails)
}
